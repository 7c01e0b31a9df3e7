package subscriber

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deliveryBody = []byte(`{"data":[{"from_id":"1336","to_id":"1337","followed_at":"2018-08-01T12:00:00Z"}]}`)

// subscribeForTest subscribes through the mocked hub, and returns the id and the secret the hub received.
func subscribeForTest(t *testing.T, sub *Subscriber, eventName string) (string, string) {
	hub := setupHubAck(hubURLTest, 202)
	id, err := sub.Subscribe(context.Background(), topicURLTest, eventName)
	require.NoError(t, err)
	return id, hub.last().Get("hub.secret")
}

func deliveryQuery(id string) url.Values {
	q := make(url.Values)
	q.Set(CorrelationParam, id)
	return q
}

func signedHeader(secret string, body []byte) http.Header {
	h := make(http.Header)
	h.Set(SignatureHeader, SignatureHeaderValue(secret, body))
	h.Set("Content-Type", "application/json")
	return h
}

func TestHandleRequest_challenge(t *testing.T) {
	sub := newTestSubscriber(t)

	q := make(url.Values)
	q.Set("hub.challenge", "abc123")
	resp, err := sub.HandleRequest(context.Background(), "GET", http.Header{}, q, nil)
	require.NoError(t, err)
	assert.Equal(t, Response{StatusCode: 200, Data: "abc123"}, resp)
}

func TestHandleRequest_denied(t *testing.T) {
	sub := newTestSubscriber(t)

	q := make(url.Values)
	q.Set("hub.mode", "denied")
	q.Set("hub.reason", "unauthorized")
	q.Set("hub.topic", topicURLTest)
	_, err := sub.HandleRequest(context.Background(), "GET", http.Header{}, q, nil)

	var denied *SubscriptionDeniedError
	require.True(t, errors.As(err, &denied), "unexpected error %v", err)
	assert.Equal(t, "unauthorized", denied.Reason)
	assert.Equal(t, topicURLTest, denied.Topic)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestHandleRequest_missingChallenge(t *testing.T) {
	sub := newTestSubscriber(t)

	q := make(url.Values)
	q.Set("hub.mode", "subscribe")
	_, err := sub.HandleRequest(context.Background(), "GET", http.Header{}, q, nil)
	assert.Equal(t, ErrMissingChallenge, err)
}

func TestHandleRequest_missingParameters(t *testing.T) {
	sub := newTestSubscriber(t)

	tbl := []struct {
		name   string
		method string
		header http.Header
		query  url.Values
		want   string
	}{
		{"method", "", http.Header{}, url.Values{}, "method"},
		{"headers", "GET", nil, url.Values{}, "headers"},
		{"query", "GET", http.Header{}, nil, "query"},
	}
	for _, tc := range tbl {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sub.HandleRequest(context.Background(), tc.method, tc.header, tc.query, nil)
			var missing *MissingParameterError
			require.True(t, errors.As(err, &missing), "unexpected error %v", err)
			assert.Equal(t, tc.want, missing.Name)
		})
	}
}

func TestHandleRequest_missingBody(t *testing.T) {
	sub := newTestSubscriber(t)
	id, _ := subscribeForTest(t, sub, "follows")

	_, err := sub.HandleRequest(context.Background(), "POST", http.Header{}, deliveryQuery(id), nil)
	assert.Equal(t, ErrMissingBody, err)
	_, err = sub.HandleRequest(context.Background(), "POST", http.Header{}, deliveryQuery(id), []byte{})
	assert.Equal(t, ErrMissingBody, err)
}

func TestHandleRequest_unsupportedMethod(t *testing.T) {
	sub := newTestSubscriber(t)

	_, err := sub.HandleRequest(context.Background(), "PUT", http.Header{}, url.Values{}, deliveryBody)
	var unsupported *UnsupportedMethodError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "PUT", unsupported.Method)
}

func TestHandleRequest_unknownSubscriptionIsGone(t *testing.T) {
	sub := newTestSubscriber(t)
	sink := &eventSink{}
	sub.On("follows", sink.handle)
	subscribeForTest(t, sub, "follows")

	for _, id := range []string{"", "never-returned", "00000000-0000-0000-0000-000000000000"} {
		resp, err := sub.HandleRequest(context.Background(), "POST", signedHeader("whatever", deliveryBody), deliveryQuery(id), deliveryBody)
		require.NoError(t, err)
		assert.Equal(t, http.StatusGone, resp.StatusCode)
	}
	assert.Empty(t, sink.all())
}

func TestHandleRequest_validSignature(t *testing.T) {
	sub := newTestSubscriber(t)
	sink := &eventSink{}
	sub.On("follows", sink.handle)
	other := &eventSink{}
	sub.On("streams", other.handle)

	id, secret := subscribeForTest(t, sub, "follows")

	resp, err := sub.HandleRequest(context.Background(), "POST", signedHeader(secret, deliveryBody), deliveryQuery(id), deliveryBody)
	require.NoError(t, err)
	assert.Equal(t, Response{StatusCode: http.StatusOK}, resp)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "follows", events[0].Name)
	assert.Equal(t, id, events[0].SubscriptionID)
	assert.JSONEq(t, `[{"from_id":"1336","to_id":"1337","followed_at":"2018-08-01T12:00:00Z"}]`, string(events[0].Data))
	assert.Empty(t, other.all())
}

func TestHandleRequest_signatureWithoutPrefix(t *testing.T) {
	sub := newTestSubscriber(t)
	sink := &eventSink{}
	sub.On("follows", sink.handle)
	id, secret := subscribeForTest(t, sub, "follows")

	h := http.Header{}
	h.Set(SignatureHeader, strings.TrimPrefix(SignatureHeaderValue(secret, deliveryBody), "sha256="))
	resp, err := sub.HandleRequest(context.Background(), "POST", h, deliveryQuery(id), deliveryBody)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, sink.all(), 1)
}

func TestHandleRequest_badSignature(t *testing.T) {
	sub := newTestSubscriber(t)
	sink := &eventSink{}
	sub.On("follows", sink.handle)
	id, secret := subscribeForTest(t, sub, "follows")

	tampered := []byte(strings.Replace(string(deliveryBody), "1336", "6666", 1))
	sha1Header := http.Header{}
	sha1Header.Set(SignatureHeader, "sha1="+strings.TrimPrefix(SignatureHeaderValue(secret, deliveryBody), "sha256="))
	notHex := http.Header{}
	notHex.Set(SignatureHeader, "sha256=zz")

	tbl := []struct {
		name   string
		header http.Header
		body   []byte
	}{
		{"wrong secret", signedHeader("not-the-secret", deliveryBody), deliveryBody},
		{"tampered body", signedHeader(secret, deliveryBody), tampered},
		{"missing header", http.Header{}, deliveryBody},
		{"other algorithm", sha1Header, deliveryBody},
		{"not hex", notHex, deliveryBody},
	}
	for _, tc := range tbl {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := sub.HandleRequest(context.Background(), "POST", tc.header, deliveryQuery(id), tc.body)
			require.NoError(t, err)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)

			// The subscription survives forged traffic
			_, ok, err := sub.Get(context.Background(), id)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
	assert.Empty(t, sink.all())
}

func TestHandleRequest_signedButNotJSON(t *testing.T) {
	sub := newTestSubscriber(t)
	sink := &eventSink{}
	sub.On("follows", sink.handle)
	id, secret := subscribeForTest(t, sub, "follows")

	body := []byte("not json")
	resp, err := sub.HandleRequest(context.Background(), "POST", signedHeader(secret, body), deliveryQuery(id), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, sink.all())
}

func TestHandleRequest_noDataField(t *testing.T) {
	sub := newTestSubscriber(t)
	sink := &eventSink{}
	sub.On("follows", sink.handle)
	id, secret := subscribeForTest(t, sub, "follows")

	body := []byte(`{"other":1}`)
	resp, err := sub.HandleRequest(context.Background(), "POST", signedHeader(secret, body), deliveryQuery(id), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	events := sink.all()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].Data)
}

func TestServeHTTP(t *testing.T) {
	sub := newTestSubscriber(t)
	sink := &eventSink{}
	sub.On("follows", sink.handle)
	id, secret := subscribeForTest(t, sub, "follows")

	t.Run("Challenge is parrotted", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/callback?item.id="+id+"&hub.mode=subscribe&hub.challenge=kitties&hub.lease_seconds=864000", nil)
		sub.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "kitties", w.Body.String())
	})

	t.Run("Denial is acknowledged", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/callback?hub.mode=denied&hub.reason=unauthorized", nil)
		sub.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "", w.Body.String())
	})

	t.Run("Missing challenge", func(t *testing.T) {
		w := httptest.NewRecorder()
		sub.ServeHTTP(w, httptest.NewRequest("GET", "/callback?hub.mode=subscribe", nil))
		assert.Equal(t, 400, w.Code)
	})

	t.Run("Signed delivery", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/callback?item.id="+id, strings.NewReader(string(deliveryBody)))
		req.Header.Set(SignatureHeader, SignatureHeaderValue(secret, deliveryBody))
		sub.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
		assert.Len(t, sink.all(), 1)
	})

	t.Run("Forged delivery", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/callback?item.id="+id, strings.NewReader(string(deliveryBody)))
		req.Header.Set(SignatureHeader, SignatureHeaderValue("forged", deliveryBody))
		sub.ServeHTTP(w, req)
		assert.Equal(t, 403, w.Code)
		assert.Len(t, sink.all(), 1)
	})

	t.Run("Oversized delivery is refused unverified", func(t *testing.T) {
		body := []byte(`{"data":"` + strings.Repeat("x", maxBodySize) + `"}`)
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/callback?item.id="+id, strings.NewReader(string(body)))
		req.Header.Set(SignatureHeader, SignatureHeaderValue(secret, body))
		sub.ServeHTTP(w, req)
		assert.Equal(t, 413, w.Code)
		assert.Len(t, sink.all(), 1)
	})

	t.Run("Delivery at the size limit", func(t *testing.T) {
		body := []byte(`{"data":"` + strings.Repeat("x", maxBodySize-11) + `"}`)
		require.Len(t, body, maxBodySize)
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/callback?item.id="+id, strings.NewReader(string(body)))
		req.Header.Set(SignatureHeader, SignatureHeaderValue(secret, body))
		sub.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
		assert.Len(t, sink.all(), 2)
	})

	t.Run("Unknown subscription", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/callback?item.id=unknown", strings.NewReader(string(deliveryBody)))
		sub.ServeHTTP(w, req)
		assert.Equal(t, 410, w.Code)
	})

	t.Run("Empty delivery", func(t *testing.T) {
		w := httptest.NewRecorder()
		sub.ServeHTTP(w, httptest.NewRequest("POST", "/callback?item.id="+id, nil))
		assert.Equal(t, 400, w.Code)
	})

	t.Run("Unsupported method", func(t *testing.T) {
		w := httptest.NewRecorder()
		sub.ServeHTTP(w, httptest.NewRequest("DELETE", "/callback", nil))
		assert.Equal(t, 405, w.Code)
		assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
	})
}
