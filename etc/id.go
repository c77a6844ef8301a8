package etc

import (
	"strings"

	"github.com/nrednav/cuid2"
)

func NewFreshID() string {
	return cuid2.Generate()
}

// PrimaryLanguage returns the primary subtag of a BCP 47 tag, lowercased,
// so "en-US" and "en_us" both become "en".
func PrimaryLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
