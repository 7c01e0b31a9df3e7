package sql

import (
	"context"
	"database/sql"
	"time"

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row scanner) (storage.Subscription, error) {
	var id, tp, ev, sec, at string
	if err := row.Scan(&id, &tp, &ev, &sec, &at); err != nil {
		return storage.Subscription{}, err
	}

	subscribedAt, err := time.Parse(timeFmt, at)
	if err != nil {
		return storage.Subscription{}, ErrMalformedTime{at}
	}

	return storage.Subscription{
		ID:           id,
		Topic:        tp,
		EventName:    ev,
		Secret:       sec,
		SubscribedAt: subscribedAt,
	}, nil
}

// Get returns the subscription associated with the given id.
func (sqlStor *SQL) Get(ctx context.Context, id string) (storage.Subscription, bool, error) {
	row := sqlStor.db.QueryRowContext(ctx, `
		SELECT id, topic_url, event_name, secret, subscribed_at
		FROM subscriptions
		WHERE id == ?;`,
		id,
	)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return storage.Subscription{}, false, nil
	}
	if err != nil {
		return storage.Subscription{}, false, err
	}
	return sub, true, nil
}

// All returns every stored subscription.
func (sqlStor *SQL) All(ctx context.Context) ([]storage.Subscription, error) {
	rows, err := sqlStor.db.QueryContext(ctx, `
		SELECT id, topic_url, event_name, secret, subscribed_at
		FROM subscriptions;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]storage.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Len counts the stored subscriptions.
func (sqlStor *SQL) Len(ctx context.Context) (int, error) {
	var n int
	if err := sqlStor.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions;`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
