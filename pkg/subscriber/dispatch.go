package subscriber

import (
	"encoding/json"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Event is a verified delivery, as seen by handlers.
type Event struct {
	Name           string
	SubscriptionID string
	// Data is the raw JSON of the delivery's "data" field.
	Data json.RawMessage
}

// Handler receives events for one event name.
type Handler func(Event)

type dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]map[uint64]Handler
	nextID   uint64

	pool   *ants.Pool
	logger *zap.Logger
}

func newDispatcher(pool *ants.Pool, logger *zap.Logger) *dispatcher {
	return &dispatcher{
		handlers: make(map[string]map[uint64]Handler),
		pool:     pool,
		logger:   logger,
	}
}

func (d *dispatcher) on(name string, h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.handlers[name]; !ok {
		d.handlers[name] = make(map[uint64]Handler)
	}
	id := d.nextID
	d.nextID++
	d.handlers[name][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.handlers[name], id)
			if len(d.handlers[name]) == 0 {
				delete(d.handlers, name)
			}
		})
	}
}

// dispatch hands ev to every handler registered for ev.Name, once each.
// It returns the number of handlers reached.
func (d *dispatcher) dispatch(ev Event) int {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[ev.Name]))
	for _, h := range d.handlers[ev.Name] {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	if len(hs) == 0 {
		d.logger.Debug("no handlers for event", zap.String("event", ev.Name), zap.String("subscriptionID", ev.SubscriptionID))
	}

	for _, h := range hs {
		h := h
		if d.pool == nil {
			d.invoke(h, ev)
			continue
		}
		if err := d.pool.Submit(func() { d.invoke(h, ev) }); err != nil {
			d.logger.Warn("cannot submit event handler to pool, running inline", zap.String("event", ev.Name), zap.Error(err))
			d.invoke(h, ev)
		}
	}
	return len(hs)
}

func (d *dispatcher) invoke(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("event", ev.Name),
				zap.String("subscriptionID", ev.SubscriptionID),
				zap.Any("panic", r))
		}
	}()
	h(ev)
}
