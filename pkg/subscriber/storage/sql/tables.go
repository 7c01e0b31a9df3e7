package sql

const (
	timeFmt           = "2006-01-02T15:04:05.999999999Z07:00"
	subscriptionTable = `
		CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT NOT NULL,
			topic_url TEXT NOT NULL,
			event_name TEXT NOT NULL,
			secret TEXT NOT NULL,
			subscribed_at TEXT NOT NULL,

			CHECK (topic_url <> ''),
			CHECK (secret <> ''),
			PRIMARY KEY (id));`
)
