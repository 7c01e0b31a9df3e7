package sql

import (
	"context"
	sql "database/sql"

	"github.com/mattn/go-sqlite3"

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
)

// Put records a subscription that the hub has accepted.
func (sqlStor *SQL) Put(ctx context.Context, sub storage.Subscription) (err error) {
	if sub.ID == "" {
		return ErrMalformedID
	}
	if sub.Topic == "" {
		return ErrMalformedTopic
	}

	tx, err := sqlStor.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: false})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(
		ctx, `
		INSERT INTO subscriptions
		(id, topic_url, event_name, secret, subscribed_at) VALUES
		(?,?,?,?,?)`,
		sub.ID, sub.Topic, sub.EventName, sub.Secret, sub.SubscribedAt.UTC().Format(timeFmt),
	); err != nil {
		if sqliteErr, ok := err.(sqlite3.Error); ok && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			err = storage.ErrDuplicateID
		}
		return err
	}

	return tx.Commit()
}
