package forwarder

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jd3nn1s/ecusim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONForwarder(t *testing.T) {
	buf := &bytes.Buffer{}
	fwd := NewJSONForwarder(buf)
	assert.Equal(t, "stdout", fwd.Name())

	first := sample()
	second := sample()
	second.RPM = 4100
	require.NoError(t, fwd.Forward(&first, &ecusim.LiveData{}))
	require.NoError(t, fwd.Forward(&second, &first))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`{"timestamp":"2024-03-01T12:30:45Z","rpm":3200,"temperature":95,"boostPressure":1.25,"afr":14.7,"load":55}`,
		lines[0])

	decoded := ecusim.LiveData{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	assert.Equal(t, second, decoded)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func TestJSONForwarderWriteError(t *testing.T) {
	fwd := NewJSONForwarder(failingWriter{})
	data := sample()
	assert.Error(t, fwd.Forward(&data, &ecusim.LiveData{}))
}
