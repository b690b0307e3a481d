package forwarder

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jd3nn1s/ecusim"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	maxPacketSize   = 512
	udpSendInterval = 100 * time.Millisecond
)

type UDPConfig struct {
	Server string `toml:"server" yaml:"server"`
	Port   int    `toml:"port" yaml:"port"`
}

type UDPForwarder struct {
	Config *UDPConfig

	conn    net.Conn
	fwdChan chan *ecusim.LiveData
}

func NewUDPForwarder(config *UDPConfig) (*UDPForwarder, error) {
	udp := &UDPForwarder{
		Config:  config,
		fwdChan: make(chan *ecusim.LiveData, 1),
	}
	if err := udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Name() string {
	return "udp"
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Forward(newData *ecusim.LiveData, prevData *ecusim.LiveData) error {
	dataCopy := *newData
	select {
	// copy the sample as it is sent from another go-routine
	case udp.fwdChan <- &dataCopy:
	default:
		// if channel is full, skip
	}
	return nil
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	limiter := time.NewTicker(udpSendInterval)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case d := <-udp.fwdChan:
			if err := udp.forward(d); err != nil {
				log.Error("unable to forward telemetry to server ", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Flush sends the queued sample, if any, without waiting for the rate limiter.
func (udp *UDPForwarder) Flush(ctx context.Context) error {
	select {
	case d := <-udp.fwdChan:
		return udp.forward(d)
	default:
	}
	return nil
}

func (udp *UDPForwarder) forward(data *ecusim.LiveData) error {
	packet, err := encodePacket(data)
	if err != nil {
		return err
	}
	if _, err := udp.conn.Write(packet); err != nil {
		return errors.Wrap(err, "unable to write udp packet")
	}
	return nil
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := maxPacketSize * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return errors.Wrap(err, "unable to dial udp server")
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}
