package sql

import "context"

// Remove deletes the subscription with the given id.
// Removing is idempotent, it is OK to do it more than once.
func (sqlStor *SQL) Remove(ctx context.Context, id string) error {
	_, err := sqlStor.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=?;`, id)
	return err
}

// Clear deletes every subscription.
func (sqlStor *SQL) Clear(ctx context.Context) error {
	_, err := sqlStor.db.ExecContext(ctx, `DELETE FROM subscriptions;`)
	return err
}
