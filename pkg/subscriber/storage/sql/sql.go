// Package sql is a sqlite3 implementation of the subscriber's Storage interface.
package sql

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // Implementation of sqlite3 driver

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
)

// SQL is a sqlite3 implementation of the subscriber's Storage interface
type SQL struct {
	db *sql.DB
}

var _ storage.Storage = (*SQL)(nil)

// New creates a new sqlite3 storage object, and returns it
func New(cfg *Config) (*SQL, error) {
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: opens its own database, so keep exactly one.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(subscriptionTable); err != nil {
		db.Close()
		return nil, err
	}

	return &SQL{db: db}, nil
}

// Create generates a new subscription and stores it
func (sqlStor *SQL) Create(ctx context.Context, topic, eventName string) (storage.Subscription, error) {
	for {
		sub, err := storage.NewSubscription(topic, eventName)
		if err != nil {
			return storage.Subscription{}, err
		}
		err = sqlStor.Put(ctx, sub)
		if err == storage.ErrDuplicateID {
			continue
		}
		if err != nil {
			return storage.Subscription{}, err
		}
		return sub, nil
	}
}

// Close closes the database
func (sqlStor *SQL) Close() error {
	return sqlStor.db.Close()
}
