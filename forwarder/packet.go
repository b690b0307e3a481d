package forwarder

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/jd3nn1s/ecusim"
	"github.com/pkg/errors"
)

type Header struct {
	Type uint8
}

const (
	TypeTelemetry = 1
)

// encodePacket prefixes the JSON encoded sample with a Header.
func encodePacket(data *ecusim.LiveData) ([]byte, error) {
	buf := bytes.NewBuffer([]byte{})
	hdr := Header{
		Type: TypeTelemetry,
	}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "unable to write packet header")
	}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		return nil, errors.Wrap(err, "unable to write telemetry packet")
	}
	return buf.Bytes(), nil
}
