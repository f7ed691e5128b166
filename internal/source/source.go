package source

import (
	"context"
	"time"
)

// Message is one post from the signal channel, in arrival order.
type Message struct {
	ID   string    `json:"id"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Source delivers channel posts until ctx is done. The channel is closed when the source stops.
type Source interface {
	Messages(ctx context.Context) (<-chan Message, error)
}
