// Package room connects to a LiveKit room and carries caption payloads
// over its data channel.
package room

import (
	"fmt"

	"github.com/charmbracelet/log"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// Topic is the data channel topic captions travel on. Messages on any
// other non-empty topic belong to someone else.
const Topic = "captions"

type DataHandler func(data []byte, sender string)

type Room struct {
	room *lksdk.Room
	log  *log.Logger
}

// Connect joins the room at url. onData runs once per caption message, on
// the SDK's goroutine.
func Connect(url, token string, onData DataHandler, logger *log.Logger) (*Room, error) {
	r := &Room{log: logger}

	callbacks := &lksdk.RoomCallback{
		OnDisconnected: func() {
			logger.Warn("disconnected")
		},
		OnParticipantConnected: func(p *lksdk.RemoteParticipant) {
			logger.Info("joined", "who", p.Identity())
		},
		OnParticipantDisconnected: func(p *lksdk.RemoteParticipant) {
			logger.Info("left", "who", p.Identity())
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnDataReceived: func(data []byte, params lksdk.DataReceiveParams) {
				deliver(onData, data, params.SenderIdentity, params.Topic)
			},
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(url, token, callbacks)
	if err != nil {
		return nil, fmt.Errorf("connect to room: %w", err)
	}
	r.room = room

	logger.Info("connected", "room", room.Name(), "identity", room.LocalParticipant.Identity())
	return r, nil
}

func deliver(onData DataHandler, data []byte, sender, topic string) {
	if topic != "" && topic != Topic {
		return
	}
	onData(data, sender)
}

// PublishData sends data to every other participant on the captions
// topic.
func (r *Room) PublishData(data []byte, reliable bool) error {
	return r.room.LocalParticipant.PublishData(
		data,
		lksdk.WithDataPublishReliable(reliable),
		lksdk.WithDataPublishTopic(Topic),
	)
}

func (r *Room) Identity() string {
	return r.room.LocalParticipant.Identity()
}

func (r *Room) Name() string {
	return r.room.Name()
}

func (r *Room) Close() {
	r.room.Disconnect()
	r.log.Info("disconnected", "room", r.room.Name())
}
