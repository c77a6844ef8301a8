// Package display holds the one caption currently on screen and clears it
// when it expires.
package display

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const DefaultTTL = 6 * time.Second

type Caption struct {
	Text      string
	Sender    string
	ExpiresAt time.Time
}

// Renderer draws the current caption. A nil caption means the screen is
// clear.
type Renderer interface {
	Render(c *Caption)
}

type RendererFunc func(c *Caption)

func (f RendererFunc) Render(c *Caption) { f(c) }

// Controller keeps at most one caption live. Each Show supersedes the
// previous caption and its expiry; a timer that fires for a superseded
// caption does nothing.
type Controller struct {
	ttl       time.Duration
	log       *log.Logger
	renderers []Renderer

	mu      sync.Mutex
	current *Caption
	timer   *time.Timer
	gen     uint64
}

func NewController(ttl time.Duration, logger *log.Logger, renderers ...Renderer) *Controller {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Controller{ttl: ttl, log: logger, renderers: renderers}
}

// AddRenderer registers r for all later transitions.
func (c *Controller) AddRenderer(r Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderers = append(c.renderers, r)
}

func (c *Controller) Show(text, sender string) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	caption := &Caption{
		Text:      text,
		Sender:    sender,
		ExpiresAt: time.Now().Add(c.ttl),
	}
	c.current = caption
	c.timer = time.AfterFunc(c.ttl, func() { c.expire(gen) })
	renderers := c.renderers
	c.mu.Unlock()

	c.log.Debug("show", "from", sender, "txt", text)
	render(renderers, caption)
}

// Clear removes the current caption right away.
func (c *Controller) Clear() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.clearLocked()
	renderers := c.renderers
	c.mu.Unlock()

	render(renderers, nil)
}

// Current returns a copy of the live caption, or nil.
func (c *Controller) Current() *Caption {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// Close cancels any pending expiry without rendering.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.current == nil {
		c.mu.Unlock()
		return
	}
	c.clearLocked()
	renderers := c.renderers
	c.mu.Unlock()

	c.log.Debug("expire")
	render(renderers, nil)
}

func (c *Controller) clearLocked() {
	c.gen++
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func render(renderers []Renderer, caption *Caption) {
	for _, r := range renderers {
		if caption == nil {
			r.Render(nil)
			continue
		}
		cp := *caption
		r.Render(&cp)
	}
}
