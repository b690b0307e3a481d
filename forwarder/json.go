package forwarder

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/jd3nn1s/ecusim"
	"github.com/pkg/errors"
)

// JSONForwarder writes one JSON object per line, e.g. to stdout.
type JSONForwarder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONForwarder(w io.Writer) *JSONForwarder {
	return &JSONForwarder{
		enc: json.NewEncoder(w),
	}
}

func (fwd *JSONForwarder) Name() string {
	return "stdout"
}

func (fwd *JSONForwarder) Forward(newData *ecusim.LiveData, prevData *ecusim.LiveData) error {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	if err := fwd.enc.Encode(newData); err != nil {
		return errors.Wrap(err, "unable to write telemetry")
	}
	return nil
}
