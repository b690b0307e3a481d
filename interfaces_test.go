package ecusim

import (
	"context"
	"sync"
)

type forwarderStub struct {
	mu       sync.Mutex
	name     string
	err      error
	received []LiveData
	previous []LiveData
}

func (fwd *forwarderStub) Forward(newData *LiveData, prevData *LiveData) error {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	fwd.received = append(fwd.received, *newData)
	fwd.previous = append(fwd.previous, *prevData)
	return fwd.err
}

func (fwd *forwarderStub) Name() string {
	if fwd.name == "" {
		return "stub"
	}
	return fwd.name
}

func (fwd *forwarderStub) count() int {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	return len(fwd.received)
}

// flushingForwarderStub records how many samples were forwarded when Flush ran.
type flushingForwarderStub struct {
	forwarderStub
	flushErr     error
	flushedAfter []int
}

func (fwd *flushingForwarderStub) Flush(ctx context.Context) error {
	n := fwd.count()
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	fwd.flushedAfter = append(fwd.flushedAfter, n)
	return fwd.flushErr
}

// generatorStub returns samples whose RPM counts up from 1.
type generatorStub struct {
	calls int
}

func (g *generatorStub) Generate() LiveData {
	g.calls++
	return LiveData{
		Timestamp: "2024-01-01T00:00:00Z",
		RPM:       g.calls,
	}
}
