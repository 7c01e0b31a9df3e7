/*
Package subscriber implements the subscriber side of the WebSub protocol
(https://www.w3.org/TR/websub/) against a single, configured hub.

A Subscriber sends subscription requests carrying a fresh secret per
subscription, answers the hub's verification handshake, and verifies the
HMAC signature of every delivery before dispatching its data to the
handlers registered for the subscription's event name.
*/
package subscriber

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage/memory"
)

// Subscriber creates, verifies and releases subscriptions with a hub, following the websub protocol
type Subscriber struct {
	clientID      string
	callbackURL   *url.URL
	hubURL        string
	leaseSeconds  int
	strictDestroy bool

	// Client, to make calls to the hub
	client *http.Client

	// Centralized source of truth for subscriptions
	storage storage.Storage

	logger     *zap.Logger
	pool       *ants.Pool
	registerer prometheus.Registerer
	metrics    *metrics
	dispatcher *dispatcher
}

// New creates and returns a new Subscriber from a given config object
func New(cfg *Config, opts ...Option) (*Subscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	callbackURL, err := url.Parse(cfg.CallbackURL)
	if err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}

	sub := &Subscriber{
		clientID:      cfg.ClientID,
		callbackURL:   callbackURL,
		hubURL:        cfg.HubURL,
		leaseSeconds:  cfg.LeaseSeconds,
		strictDestroy: cfg.StrictDestroy,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(sub)
	}
	if sub.storage == nil {
		sub.storage = memory.New()
	}

	sub.dispatcher = newDispatcher(sub.pool, sub.logger)
	sub.metrics = newMetrics(sub.storage)
	if sub.registerer != nil {
		if err := sub.metrics.register(sub.registerer); err != nil {
			return nil, fmt.Errorf("cannot register metrics: %w", err)
		}
	}

	return sub, nil
}

// On registers handler for deliveries to subscriptions created with eventName.
// The returned function removes the handler again.
func (sub *Subscriber) On(eventName string, handler Handler) (unregister func()) {
	return sub.dispatcher.on(eventName, handler)
}

// Get returns the live subscription with the given id.
func (sub *Subscriber) Get(ctx context.Context, id string) (storage.Subscription, bool, error) {
	return sub.storage.Get(ctx, id)
}

// Subscriptions returns a snapshot of every live subscription.
func (sub *Subscriber) Subscriptions(ctx context.Context) ([]storage.Subscription, error) {
	return sub.storage.All(ctx)
}

// callbackFor returns the configured callback URL with id as the correlation parameter.
func (sub *Subscriber) callbackFor(id string) string {
	u := *sub.callbackURL
	q := u.Query()
	q.Set(CorrelationParam, id)
	u.RawQuery = q.Encode()
	return u.String()
}
