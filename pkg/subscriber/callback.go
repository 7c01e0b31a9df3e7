package subscriber

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// SignatureHeader carries the HMAC of a delivery body, as "sha256=<hex>".
	SignatureHeader = "X-Hub-Signature"

	signatureAlgorithm = "sha256"
	maxBodySize        = 1 << 20
)

// Response is the answer to an inbound hub request.
type Response struct {
	StatusCode int
	// Data is written as the response body, if not empty.
	Data string
}

// HandleRequest is the branching point between the two requests a hub makes to the callback:
// the verification handshake (GET) and the content delivery (POST).
//
// An unknown subscription id is answered with 410, a bad signature with 403 and a body
// that is not JSON with 400. Those are answers, not errors.
func (sub *Subscriber) HandleRequest(ctx context.Context, method string, header http.Header, query url.Values, body []byte) (Response, error) {
	switch {
	case method == "":
		return Response{}, &MissingParameterError{Name: "method"}
	case header == nil:
		return Response{}, &MissingParameterError{Name: "headers"}
	case query == nil:
		return Response{}, &MissingParameterError{Name: "query"}
	}

	switch method {
	case http.MethodGet:
		return sub.handleVerification(query)
	case http.MethodPost:
		if len(body) == 0 {
			return Response{}, ErrMissingBody
		}
		return sub.handleDelivery(ctx, header, query, body)
	default:
		return Response{}, &UnsupportedMethodError{Method: method}
	}
}

func (sub *Subscriber) handleVerification(query url.Values) (Response, error) {
	topic := query.Get("hub.topic")

	if query.Get("hub.mode") == modeDenied {
		reason := query.Get("hub.reason")
		sub.logger.Warn("subscription denied by hub",
			zap.String("subscriptionID", query.Get(CorrelationParam)),
			zap.String("topic", topic),
			zap.String("reason", reason))
		return Response{}, &SubscriptionDeniedError{
			ID:     query.Get(CorrelationParam),
			Topic:  topic,
			Reason: reason,
		}
	}

	challenge := query.Get("hub.challenge")
	if challenge == "" {
		return Response{}, ErrMissingChallenge
	}

	sub.logger.Info("verification request answered",
		zap.String("subscriptionID", query.Get(CorrelationParam)),
		zap.String("mode", query.Get("hub.mode")),
		zap.String("topic", topic),
		zap.String("leaseSeconds", query.Get("hub.lease_seconds")))

	return Response{StatusCode: http.StatusOK, Data: challenge}, nil
}

func (sub *Subscriber) handleDelivery(ctx context.Context, header http.Header, query url.Values, body []byte) (Response, error) {
	id := query.Get(CorrelationParam)

	s, ok, err := sub.storage.Get(ctx, id)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		sub.metrics.deliveries.WithLabelValues(resultGone).Inc()
		sub.logger.Info("delivery for unknown subscription, answering gone", zap.String("subscriptionID", id))
		return Response{StatusCode: http.StatusGone}, nil
	}

	if !validSignature(s.Secret, header.Get(SignatureHeader), body) {
		sub.metrics.deliveries.WithLabelValues(resultForbidden).Inc()
		sub.logger.Warn("delivery signature mismatch", zap.String("subscriptionID", id), zap.String("topic", s.Topic))
		return Response{StatusCode: http.StatusForbidden}, nil
	}

	if !gjson.ValidBytes(body) {
		sub.metrics.deliveries.WithLabelValues(resultMalformed).Inc()
		sub.logger.Warn("signed delivery is not JSON", zap.String("subscriptionID", id), zap.String("topic", s.Topic))
		return Response{StatusCode: http.StatusBadRequest}, nil
	}

	var data json.RawMessage
	if d := gjson.GetBytes(body, "data"); d.Exists() {
		data = json.RawMessage(d.Raw)
	}

	sub.metrics.deliveries.WithLabelValues(resultAccepted).Inc()
	n := sub.dispatcher.dispatch(Event{
		Name:           s.EventName,
		SubscriptionID: s.ID,
		Data:           data,
	})
	sub.logger.Debug("delivery dispatched",
		zap.String("subscriptionID", id),
		zap.String("event", s.EventName),
		zap.Int("handlers", n))

	return Response{StatusCode: http.StatusOK}, nil
}

// validSignature reports whether signature is the HMAC-SHA256 of body under secret.
// The "sha256=" prefix is optional, any other algorithm is refused.
func validSignature(secret, signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	if algo, digest, found := strings.Cut(signature, "="); found {
		if !strings.EqualFold(algo, signatureAlgorithm) {
			return false
		}
		signature = digest
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(secret, body))
}

// Sign returns the HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeaderValue formats the signature the way hubs send it.
func SignatureHeaderValue(secret string, body []byte) string {
	return signatureAlgorithm + "=" + hex.EncodeToString(Sign(secret, body))
}

// ServeHTTP adapts HandleRequest to net/http, so the Subscriber can be mounted as the callback endpoint.
func (sub *Subscriber) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodySize))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sub.logger.Warn("callback body too large, refusing it unverified",
				zap.String("subscriptionID", req.URL.Query().Get(CorrelationParam)),
				zap.Int64("limit", tooLarge.Limit))
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		if err != nil {
			sub.logger.Warn("cannot read callback body", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body = b
	}

	resp, err := sub.HandleRequest(req.Context(), req.Method, req.Header, req.URL.Query(), body)
	if err != nil {
		var denied *SubscriptionDeniedError
		var unsupported *UnsupportedMethodError
		var missing *MissingParameterError
		switch {
		case errors.As(err, &denied):
			// The hub only needs the denial acknowledged.
			w.WriteHeader(http.StatusOK)
		case errors.As(err, &unsupported):
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, err.Error(), http.StatusMethodNotAllowed)
		case errors.Is(err, ErrMissingChallenge), errors.Is(err, ErrMissingBody), errors.As(err, &missing):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			sub.logger.Error("cannot handle callback request", zap.String("method", req.Method), zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Data != "" {
		_, _ = io.WriteString(w, resp.Data)
	}
}
