package forwarder

import (
	"context"
	"math"
	"sync"

	"github.com/jd3nn1s/ecusim"
	"github.com/jd3nn1s/ecusim/canbus"
	"github.com/pkg/errors"
)

const (
	FrameRPM           uint32 = 0x200
	FrameTemperature   uint32 = 0x201
	FrameBoostPressure uint32 = 0x202
	FrameAFR           uint32 = 0x203
	FrameLoad          uint32 = 0x204
)

type CANConfig struct {
	Interface string `toml:"interface" yaml:"interface"`
}

type CANConn interface {
	Start(ctx context.Context) error
	Close() error
	SendUint16(id uint32, v int) error
	SendUint8(id uint32, v int) error
}

// to allow testing
var canConnect = func(iface string) (CANConn, error) {
	c, err := canbus.Connect(iface)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CANForwarder publishes changed fields as CAN frames. It is an
// ecusim.Retryable so the connection survives the interface going away.
type CANForwarder struct {
	Config *CANConfig

	mu sync.Mutex
	c  CANConn
}

func NewCANForwarder(config *CANConfig) *CANForwarder {
	return &CANForwarder{
		Config: config,
	}
}

func (fwd *CANForwarder) Name() string {
	return "canbus"
}

func (fwd *CANForwarder) Open() error {
	c, err := canConnect(fwd.Config.Interface)
	if err != nil {
		return err
	}
	fwd.mu.Lock()
	fwd.c = c
	fwd.mu.Unlock()
	return nil
}

func (fwd *CANForwarder) Close() error {
	fwd.mu.Lock()
	c := fwd.c
	fwd.c = nil
	fwd.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

func (fwd *CANForwarder) Start(ctx context.Context) error {
	fwd.mu.Lock()
	c := fwd.c
	fwd.mu.Unlock()
	if c == nil {
		return errors.New("canbus is not initialized")
	}
	return c.Start(ctx)
}

func (fwd *CANForwarder) Forward(newData *ecusim.LiveData, prevData *ecusim.LiveData) error {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	if fwd.c == nil {
		return errors.New("canbus is not initialized")
	}

	if prevData.RPM != newData.RPM {
		if err := fwd.c.SendUint16(FrameRPM, newData.RPM); err != nil {
			return errors.Wrap(err, "unable to send rpm to CAN bus")
		}
	}
	if prevData.Temperature != newData.Temperature {
		if err := fwd.c.SendUint16(FrameTemperature, newData.Temperature); err != nil {
			return errors.Wrap(err, "unable to send temperature to CAN bus")
		}
	}
	if prevData.BoostPressure != newData.BoostPressure {
		v := int(math.Round(float64(newData.BoostPressure) * 100))
		if err := fwd.c.SendUint16(FrameBoostPressure, v); err != nil {
			return errors.Wrap(err, "unable to send boost pressure to CAN bus")
		}
	}
	if prevData.AFR != newData.AFR {
		v := int(math.Round(float64(newData.AFR) * 10))
		if err := fwd.c.SendUint16(FrameAFR, v); err != nil {
			return errors.Wrap(err, "unable to send afr to CAN bus")
		}
	}
	if prevData.Load != newData.Load {
		if err := fwd.c.SendUint8(FrameLoad, newData.Load); err != nil {
			return errors.Wrap(err, "unable to send load to CAN bus")
		}
	}
	return nil
}
