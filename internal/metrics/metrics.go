// Package metrics exposes Prometheus counters for embedded images.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the image module counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	embedded  *prometheus.CounterVec // by format
	fallbacks prometheus.Counter
	bytes     prometheus.Counter
}

// New creates the counters and registers them with reg. A nil reg disables
// metrics. Collectors already registered by another module instance on the
// same registry are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil // Metrics disabled
	}

	embedded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docximage",
		Name:      "images_embedded_total",
		Help:      "Total number of images embedded into documents",
	}, []string{"format"})

	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "docximage",
		Name:      "image_fallbacks_total",
		Help:      "Total number of image placeholders rendered with their original content",
	})

	bytes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "docximage",
		Name:      "image_bytes_total",
		Help:      "Total number of media bytes written into documents",
	})

	m := &Metrics{}
	var err error
	if m.embedded, err = register(reg, embedded); err != nil {
		return nil, err
	}
	if m.fallbacks, err = register(reg, fallbacks); err != nil {
		return nil, err
	}
	if m.bytes, err = register(reg, bytes); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return c, err
}

// RecordEmbedded records an image of the given format written into a part.
func (m *Metrics) RecordEmbedded(format string, size int) {
	if m == nil {
		return
	}

	m.embedded.WithLabelValues(format).Inc()
	m.bytes.Add(float64(size))
}

// RecordFallback records a placeholder that kept its original content.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}

	m.fallbacks.Inc()
}
