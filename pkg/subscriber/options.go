package subscriber

import (
	"net/http"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
)

// Option configures a Subscriber.
type Option func(s *Subscriber)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Subscriber) {
		s.logger = logger
	}
}

// WithHTTPClient sets the client used to reach the hub.
// Redirects are followed by the Subscriber itself, so the client should not follow them.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Subscriber) {
		s.client = client
	}
}

// WithStorage replaces the default in-memory registry.
func WithStorage(st storage.Storage) Option {
	return func(s *Subscriber) {
		s.storage = st
	}
}

// WithDispatchPool runs event handlers on pool instead of the goroutine serving the delivery.
func WithDispatchPool(pool *ants.Pool) Option {
	return func(s *Subscriber) {
		s.pool = pool
	}
}

// WithMetrics registers the subscriber's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Subscriber) {
		s.registerer = reg
	}
}
