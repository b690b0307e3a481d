package metrics

import (
	"io/ioutil"
	"net"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv, err := Serve("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	SamplesTotal.Inc()
	ForwardedTotal.WithLabelValues("stdout").Inc()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "ecusim_samples_total")

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["ecusim_samples_total"])
	assert.True(t, names["ecusim_forwarded_total"])
	assert.True(t, names["ecusim_websocket_clients"])
}

func TestServeBusyPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv, err := Serve(l.Addr().String())
	assert.Error(t, err)
	assert.Nil(t, srv)
}
