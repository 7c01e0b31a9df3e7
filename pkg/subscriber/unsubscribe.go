package subscriber

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Unsubscribe asks the hub to stop delivering for the subscription with the given id.
// Unknown ids are not an error, so retries are safe.
// If the request cannot reach the hub the subscription is kept, so it can be retried.
// Only the hub call is bound to ctx, registry access runs to completion.
func (sub *Subscriber) Unsubscribe(ctx context.Context, id string) error {
	storeCtx := context.WithoutCancel(ctx)

	s, ok, err := sub.storage.Get(storeCtx, id)
	if err != nil {
		return fmt.Errorf("cannot look up subscription %s: %w", id, err)
	}
	if !ok {
		sub.logger.Info("unsubscribe for unknown subscription, nothing to do", zap.String("subscriptionID", id))
		return nil
	}

	resp, err := sub.sendHubRequest(ctx, hubRequest{
		Callback: sub.callbackFor(s.ID),
		Mode:     modeUnsubscribe,
		Topic:    s.Topic,
		Secret:   s.Secret,
	})
	if err != nil {
		sub.metrics.hubRequests.WithLabelValues(modeUnsubscribe, resultError).Inc()
		return &HubUnregistrationError{ID: id, Topic: s.Topic, Err: err}
	}

	if resp.accepted() {
		sub.metrics.hubRequests.WithLabelValues(modeUnsubscribe, resultAccepted).Inc()
	} else {
		sub.metrics.hubRequests.WithLabelValues(modeUnsubscribe, resultRejected).Inc()
		sub.logger.Warn("hub did not accept unsubscription request, removing subscription anyway",
			zap.String("subscriptionID", id),
			zap.String("topic", s.Topic),
			zap.Int("code", resp.StatusCode),
			zap.String("details", resp.Details))
	}

	if err := sub.storage.Remove(storeCtx, id); err != nil {
		return fmt.Errorf("cannot remove subscription %s: %w", id, err)
	}

	sub.logger.Info("unsubscribed", zap.String("subscriptionID", id), zap.String("topic", s.Topic))
	return nil
}

// Destroy unsubscribes every live subscription, one at a time, then empties the registry.
// A failing subscription does not stop the others. The failures are logged, and returned
// only when the config asks for StrictDestroy.
// The registry is emptied even when ctx expires before every hub call is made.
func (sub *Subscriber) Destroy(ctx context.Context) error {
	storeCtx := context.WithoutCancel(ctx)

	subs, err := sub.storage.All(storeCtx)
	if err != nil {
		return fmt.Errorf("cannot list subscriptions: %w", err)
	}

	var errs *multierror.Error
	failed := 0
	for _, s := range subs {
		if err := sub.Unsubscribe(ctx, s.ID); err != nil {
			sub.logger.Warn("cannot unsubscribe while destroying",
				zap.String("subscriptionID", s.ID),
				zap.String("topic", s.Topic),
				zap.Error(err))
			errs = multierror.Append(errs, err)
			failed++
		}
	}

	if err := sub.storage.Clear(storeCtx); err != nil {
		return multierror.Append(errs, fmt.Errorf("cannot clear subscriptions: %w", err))
	}

	sub.logger.Info("destroyed subscriptions", zap.Int("count", len(subs)), zap.Int("failed", failed))

	if sub.strictDestroy {
		return errs.ErrorOrNil()
	}
	return nil
}
