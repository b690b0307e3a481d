package forwarder

import (
	"context"
	"sync"
)

type canFrame struct {
	id uint32
	v  int
}

type canConnStub struct {
	mu        sync.Mutex
	startChan chan struct{}
	closed    bool
	sent      []canFrame
	sendErr   error
}

func createCANConnStub() *canConnStub {
	return &canConnStub{
		startChan: make(chan struct{}, 1),
	}
}

func (c *canConnStub) Start(ctx context.Context) error {
	select {
	case c.startChan <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *canConnStub) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *canConnStub) SendUint16(id uint32, v int) error {
	return c.send(id, v)
}

func (c *canConnStub) SendUint8(id uint32, v int) error {
	return c.send(id, v)
}

func (c *canConnStub) send(id uint32, v int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, canFrame{id: id, v: v})
	return nil
}

func (c *canConnStub) frames() []canFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := c.sent
	c.sent = nil
	return ret
}
