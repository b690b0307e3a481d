package ecusim

import (
	"context"
	"time"

	"github.com/jd3nn1s/ecusim/metrics"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultInterval = time.Second
	flushWait       = 5 * time.Second
)

type Simulator struct {
	Data LiveData

	gen        Generator
	interval   time.Duration
	count      int
	forwarders []Forwarder
}

func NewSimulator(gen Generator, interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Simulator{
		gen:      gen,
		interval: interval,
	}
}

// SetCount limits Run to n samples. Zero runs until the context is cancelled.
func (s *Simulator) SetCount(n int) {
	s.count = n
}

func (s *Simulator) AddForwarder(fwd Forwarder) {
	s.forwarders = append(s.forwarders, fwd)
}

// Step generates one sample and forwards it.
func (s *Simulator) Step() LiveData {
	prevData := s.Data
	s.Data = s.gen.Generate()
	metrics.SamplesTotal.Inc()
	s.TelemetryUpdate(&prevData)
	return s.Data
}

func (s *Simulator) TelemetryUpdate(prevData *LiveData) {
	for _, fwd := range s.forwarders {
		if err := fwd.Forward(&s.Data, prevData); err != nil {
			metrics.ForwardErrorsTotal.WithLabelValues(fwd.Name()).Inc()
			log.WithError(err).
				WithField("forwarder", fwd.Name()).
				Error("unable to forward telemetry")
			continue
		}
		metrics.ForwardedTotal.WithLabelValues(fwd.Name()).Inc()
	}
}

// Run emits a sample straight away and then one per interval.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.WithField("interval", s.interval).
		WithField("count", s.count).
		Info("simulator started")
	for n := 0; s.count == 0 || n < s.count; n++ {
		if n > 0 {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
	}
	flushCtx, cancel := context.WithTimeout(ctx, flushWait)
	defer cancel()
	s.Flush(flushCtx)
	log.WithField("count", s.count).Info("simulator finished")
	return nil
}

// Flush hands pending samples of queueing forwarders to their destination.
func (s *Simulator) Flush(ctx context.Context) {
	for _, fwd := range s.forwarders {
		flusher, ok := fwd.(Flusher)
		if !ok {
			continue
		}
		if err := flusher.Flush(ctx); err != nil {
			metrics.ForwardErrorsTotal.WithLabelValues(fwd.Name()).Inc()
			log.WithError(err).
				WithField("forwarder", fwd.Name()).
				Error("unable to flush telemetry")
		}
	}
}
