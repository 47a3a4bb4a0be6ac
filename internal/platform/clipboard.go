package platform

import (
	"errors"
	"time"
)

type Clipboard interface {
	Set(text string, ttl time.Duration) error
}

type noopClipboard struct{}

func (n noopClipboard) Set(string, time.Duration) error {
	return errors.New("platform: no clipboard available")
}

func NewClipboard() Clipboard { return noopClipboard{} }
