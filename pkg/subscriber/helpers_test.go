package subscriber

import (
	"errors"
	"io/ioutil"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	httpmock "gopkg.in/jarcoal/httpmock.v1"
)

var topicURLTest = "https://api.example.com/helix/users/follows?first=1&to_id=1337"
var hubURLTest = "http://example.com/hub"
var callbackURLTest = "https://relay.example.com/callback"

// hubRecorder records every form posted to the mocked hub.
type hubRecorder struct {
	mu       sync.Mutex
	requests []url.Values
	headers  []http.Header
}

func (h *hubRecorder) record(req *http.Request) (url.Values, error) {
	bdy, err := ioutil.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	vals, err := url.ParseQuery(string(bdy))
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.requests = append(h.requests, vals)
	h.headers = append(h.headers, req.Header.Clone())
	h.mu.Unlock()
	return vals, nil
}

func (h *hubRecorder) last() url.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) == 0 {
		return nil
	}
	return h.requests[len(h.requests)-1]
}

func (h *hubRecorder) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

func newTestConfig() *Config {
	cfg := NewConfig()
	cfg.ClientID = "test-client"
	cfg.CallbackURL = callbackURLTest
	cfg.HubURL = hubURLTest
	return cfg
}

// newTestSubscriber returns a Subscriber whose hub calls are served by httpmock.
func newTestSubscriber(t *testing.T, opts ...Option) *Subscriber {
	return newTestSubscriberWithConfig(t, newTestConfig(), opts...)
}

func newTestSubscriberWithConfig(t *testing.T, cfg *Config, opts ...Option) *Subscriber {
	sub, err := New(cfg, opts...)
	require.NoError(t, err)
	httpmock.ActivateNonDefault(sub.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return sub
}

// setupHubAck makes the hub answer every request with code, recording what it received.
func setupHubAck(hubURL string, code int) *hubRecorder {
	rec := &hubRecorder{}
	httpmock.RegisterResponder("POST", hubURL,
		func(req *http.Request) (*http.Response, error) {
			if _, err := rec.record(req); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(code, ""), nil
		})
	return rec
}

// setupHubFailure makes every request to the hub fail at the transport level.
func setupHubFailure(hubURL string) {
	httpmock.RegisterResponder("POST", hubURL, httpmock.NewErrorResponder(errors.New("connection refused")))
}

func setupTempRedirect(hubURL, redirectURL string) *hubRecorder {
	rec := &hubRecorder{}
	httpmock.RegisterResponder("POST", hubURL,
		func(req *http.Request) (*http.Response, error) {
			if _, err := rec.record(req); err != nil {
				return nil, err
			}
			resp := httpmock.NewStringResponse(307, "")
			resp.Header.Set("Location", redirectURL)
			return resp, nil
		})
	return rec
}

// correlationID pulls the subscription id out of a recorded hub.callback.
func correlationID(t *testing.T, form url.Values) string {
	cb, err := url.Parse(form.Get("hub.callback"))
	require.NoError(t, err)
	return cb.Query().Get(CorrelationParam)
}

// eventSink collects dispatched events.
type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) handle(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
