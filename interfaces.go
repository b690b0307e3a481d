package ecusim

import (
	"context"
)

type Generator interface {
	Generate() LiveData
}

// Forwarder receives every generated sample along with the one before it.
type Forwarder interface {
	Forward(newData *LiveData, prevData *LiveData) error
	Name() string
}

// Flusher is a Forwarder that queues samples and can send what is pending
// on demand, so a bounded run does not lose its last samples.
type Flusher interface {
	Flush(ctx context.Context) error
}
