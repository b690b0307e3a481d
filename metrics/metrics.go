package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	SamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ecusim_samples_total", Help: "Telemetry samples generated"},
	)
	ForwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ecusim_forwarded_total", Help: "Samples handed to a forwarder"},
		[]string{"forwarder"},
	)
	ForwardErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ecusim_forward_errors_total", Help: "Samples a forwarder failed to accept"},
		[]string{"forwarder"},
	)
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ecusim_websocket_clients", Help: "Connected live stream clients"},
	)
)

func init() {
	prometheus.MustRegister(SamplesTotal, ForwardedTotal, ForwardErrorsTotal, WebSocketClients)
}

// Serve binds addr and exposes /metrics on it in the background.
func Serve(addr string) (*http.Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to listen for metrics on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: l.Addr().String(), Handler: mux}
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return srv, nil
}
