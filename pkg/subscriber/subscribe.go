package subscriber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"
	"go.uber.org/zap"

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
)

const (
	modeSubscribe   = "subscribe"
	modeUnsubscribe = "unsubscribe"
	modeDenied      = "denied"

	// CorrelationParam is the callback query parameter carrying the subscription id.
	CorrelationParam = "item.id"

	clientIDHeader = "Client-ID"
	maxRedirects   = 5
	maxDetails     = 512
)

// hubRequest is the form body of a subscription or unsubscription request.
type hubRequest struct {
	Callback     string `url:"hub.callback"`
	Mode         string `url:"hub.mode"`
	Topic        string `url:"hub.topic"`
	LeaseSeconds int    `url:"hub.lease_seconds,omitempty"`
	Secret       string `url:"hub.secret"`
}

// hubResponse is what's left of the hub's reply once the body is drained.
type hubResponse struct {
	StatusCode int
	Details    string
}

func (r hubResponse) accepted() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Subscribe asks the hub to deliver changes of topic, dispatched under eventName.
// The subscription is only stored once the hub accepts the request.
func (sub *Subscriber) Subscribe(ctx context.Context, topic, eventName string) (string, error) {
	if topic == "" {
		return "", &MissingParameterError{Name: "topic"}
	}
	if eventName == "" {
		return "", &MissingParameterError{Name: "eventName"}
	}

	s, err := storage.NewSubscription(topic, eventName)
	if err != nil {
		return "", &HubRegistrationError{Topic: topic, Err: err}
	}

	resp, err := sub.sendHubRequest(ctx, hubRequest{
		Callback:     sub.callbackFor(s.ID),
		Mode:         modeSubscribe,
		Topic:        topic,
		LeaseSeconds: sub.leaseSeconds,
		Secret:       s.Secret,
	})
	if err != nil {
		sub.metrics.hubRequests.WithLabelValues(modeSubscribe, resultError).Inc()
		return "", &HubRegistrationError{Topic: topic, Err: err}
	}
	if !resp.accepted() {
		sub.metrics.hubRequests.WithLabelValues(modeSubscribe, resultRejected).Inc()
		return "", &HubRegistrationError{Topic: topic, StatusCode: resp.StatusCode, Details: resp.Details}
	}
	sub.metrics.hubRequests.WithLabelValues(modeSubscribe, resultAccepted).Inc()

	if err := sub.storage.Put(ctx, s); err != nil {
		return "", &HubRegistrationError{Topic: topic, Err: fmt.Errorf("cannot store subscription: %w", err)}
	}

	sub.logger.Info("subscription request accepted, pending verification",
		zap.String("subscriptionID", s.ID),
		zap.String("topic", topic),
		zap.String("event", eventName),
		zap.Int("code", resp.StatusCode))

	return s.ID, nil
}

// sendHubRequest posts hr to the hub, following temporary and permanent redirects.
func (sub *Subscriber) sendHubRequest(ctx context.Context, hr hubRequest) (hubResponse, error) {
	data, err := query.Values(hr)
	if err != nil {
		return hubResponse{}, fmt.Errorf("cannot encode hub request: %w", err)
	}
	body := data.Encode()

	target := sub.hubURL
	for redirects := 0; ; redirects++ {
		resp, err := sub.postForm(ctx, target, body)
		if err != nil {
			return hubResponse{}, err
		}

		if resp.StatusCode != http.StatusTemporaryRedirect && resp.StatusCode != http.StatusPermanentRedirect {
			return hubResponse{StatusCode: resp.StatusCode, Details: resp.Details}, nil
		}

		location := resp.Header.Get("Location")
		if location == "" {
			return hubResponse{StatusCode: resp.StatusCode, Details: "redirect without Location"}, nil
		}
		if redirects >= maxRedirects {
			return hubResponse{}, fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		next, err := resolveLocation(target, location)
		if err != nil {
			return hubResponse{}, err
		}

		if resp.StatusCode == http.StatusTemporaryRedirect {
			sub.logger.Info("temporary redirect response, trying new address", zap.String("location", next))
		} else {
			sub.logger.Info("permanent redirect response, trying new address", zap.String("location", next))
		}
		target = next
	}
}

type postResult struct {
	StatusCode int
	Header     http.Header
	Details    string
}

func (sub *Subscriber) postForm(ctx context.Context, target, body string) (postResult, error) {
	if err := ctx.Err(); err != nil {
		return postResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return postResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.Header.Set(clientIDHeader, sub.clientID)

	resp, err := sub.client.Do(req)
	if err != nil {
		return postResult{}, err
	}
	defer resp.Body.Close()

	details, err := io.ReadAll(io.LimitReader(resp.Body, maxDetails))
	if err != nil {
		return postResult{}, err
	}
	// Drain whatever is left so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return postResult{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Details:    string(details),
	}, nil
}

func resolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect location {%s}: %w", location, err)
	}
	return b.ResolveReference(l).String(), nil
}
