package canbus

import (
	"context"
	"encoding/binary"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Bus interface {
	ConnectAndPublish() error
	Disconnect() error
	Publish(can.Frame) error
}

// to allow testing
var newBus = func(name string) (Bus, error) {
	return can.NewBusForInterfaceWithName(name)
}

type Connection struct {
	bus Bus
}

func Connect(iface string) (*Connection, error) {
	bus, err := newBus(iface)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open can interface %s", iface)
	}
	return &Connection{
		bus: bus,
	}, nil
}

// Start runs the bus until it fails or ctx is done.
func (c *Connection) Start(ctx context.Context) error {
	log.Info("CAN bus opened")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			log.Infof("stopping can bus: %v", ctx.Err())
			if err := c.bus.Disconnect(); err != nil {
				log.WithField("err", err).Warn("unable to disconnect canbus after context")
			}
		case <-done:
		}
	}()

	if err := c.bus.ConnectAndPublish(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	return c.bus.Disconnect()
}

func (c *Connection) SendUint16(id uint32, v int) error {
	frame, err := Uint16Frame(id, v)
	if err != nil {
		return err
	}
	return c.publish(frame)
}

func (c *Connection) SendUint8(id uint32, v int) error {
	if v < 0 || v > 0xff {
		return errors.Errorf("value %d does not fit in uint8", v)
	}
	return c.publish(can.Frame{
		ID:     id,
		Length: 1,
		Data:   [8]uint8{uint8(v)},
	})
}

func (c *Connection) publish(frame can.Frame) error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	log.WithField("canID", frame.ID).
		WithField("length", frame.Length).
		Debug("sending canbus frame")
	return c.bus.Publish(frame)
}

// Uint16Frame encodes v little endian into a 2 byte frame.
func Uint16Frame(id uint32, v int) (can.Frame, error) {
	if v < 0 || v > 0xffff {
		return can.Frame{}, errors.Errorf("value %d does not fit in uint16", v)
	}
	frame := can.Frame{
		ID:     id,
		Length: 2,
	}
	binary.LittleEndian.PutUint16(frame.Data[0:2], uint16(v))
	return frame, nil
}

func Uint16Value(frame can.Frame) (int, error) {
	if frame.Length != 2 {
		return 0, errors.Errorf("incorrect frame size for uint16: %v", frame.Length)
	}
	return int(binary.LittleEndian.Uint16(frame.Data[0:2])), nil
}
