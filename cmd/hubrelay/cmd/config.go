package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/adamsanghera/hubrelay/pkg/log"
	"github.com/adamsanghera/hubrelay/pkg/subscriber"
	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage/sql"
	"github.com/adamsanghera/hubrelay/pkg/topics"
)

const (
	storageMemory = "memory"
	storageSQLite = "sqlite"
)

var validate = validator.New()

// TopicConfig is one subscription the relay makes at startup.
type TopicConfig struct {
	Topic string `yaml:"topic" validate:"required,url"`
	Event string `yaml:"event" validate:"required"`
}

// helixKinds maps the kind of a HelixTopic to the topic it watches, given an id.
var helixKinds = map[string]func(topics.Builder, string) string{
	"follows":    func(b topics.Builder, toID string) string { return b.UserFollows("", toID) },
	"stream":     topics.Builder.StreamChanged,
	"user":       topics.Builder.UserChanged,
	"extension":  topics.Builder.ExtensionTransactions,
	"moderators": topics.Builder.ModeratorChanged,
}

// HelixTopic is a subscription to a Helix notification type, named by kind and the id it watches.
type HelixTopic struct {
	Kind  string `yaml:"kind" validate:"oneof=follows stream user extension moderators"`
	ID    string `yaml:"id" validate:"required"`
	Event string `yaml:"event" validate:"required"`
}

type HelixConfig struct {
	// BaseURL defaults to topics.DefaultBaseURL.
	BaseURL       string       `yaml:"baseURL" validate:"omitempty,url"`
	Subscriptions []HelixTopic `yaml:"subscriptions" validate:"dive"`
}

// RetryConfig bounds the retries of a subscription request that failed.
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts" validate:"min=1"`
	Min         time.Duration `yaml:"min" validate:"gt=0"`
	Max         time.Duration `yaml:"max" validate:"gtefield=Min"`
}

type StorageConfig struct {
	Driver string     `yaml:"driver" validate:"oneof=memory sqlite"`
	SQLite sql.Config `yaml:"sqlite"`
}

// Config is the relay configuration file.
// An empty CallbackPath means the path of Subscriber.CallbackURL.
type Config struct {
	Log             log.Config        `yaml:"log"`
	Subscriber      subscriber.Config `yaml:"subscriber"`
	Storage         StorageConfig     `yaml:"storage"`
	Listen          string            `yaml:"listen" validate:"required"`
	CallbackPath    string            `yaml:"callbackPath" validate:"omitempty,startswith=/"`
	DispatchWorkers int               `yaml:"dispatchWorkers" validate:"min=0"`
	Retry           RetryConfig       `yaml:"retry"`
	ShutdownTimeout time.Duration     `yaml:"shutdownTimeout" validate:"gt=0"`
	Subscriptions   []TopicConfig     `yaml:"subscriptions" validate:"dive"`
	Helix           HelixConfig       `yaml:"helix"`
}

// NewConfig returns the defaults a config file is read over.
func NewConfig() *Config {
	return &Config{
		Subscriber: *subscriber.NewConfig(),
		Storage: StorageConfig{
			Driver: storageMemory,
			SQLite: *sql.NewConfig(),
		},
		Listen:          ":4000",
		DispatchWorkers: 16,
		Retry: RetryConfig{
			MaxAttempts: 5,
			Min:         time.Second,
			Max:         time.Minute,
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks the relay settings, then the subscriber's own.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Subscriber.Validate(); err != nil {
		return err
	}
	if c.CallbackPath != "" && c.CallbackPath != callbackURLPath(c.Subscriber.CallbackURL) {
		return fmt.Errorf("invalid config: callbackPath %s does not match the path of callbackURL %s, the hub would never reach the callback",
			c.CallbackPath, c.Subscriber.CallbackURL)
	}
	return nil
}

// RoutePath is the path the callback is served on.
func (c *Config) RoutePath() string {
	if c.CallbackPath != "" {
		return c.CallbackPath
	}
	return callbackURLPath(c.Subscriber.CallbackURL)
}

func callbackURLPath(callbackURL string) string {
	u, err := url.Parse(callbackURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Topics lists every subscription to make, the Helix ones resolved to their topic URLs.
func (c *Config) Topics() []TopicConfig {
	b := topics.NewBuilder(c.Helix.BaseURL)
	out := make([]TopicConfig, 0, len(c.Subscriptions)+len(c.Helix.Subscriptions))
	out = append(out, c.Subscriptions...)
	for _, h := range c.Helix.Subscriptions {
		out = append(out, TopicConfig{Topic: helixKinds[h.Kind](b, h.ID), Event: h.Event})
	}
	return out
}

// ReadConfig reads filename over the defaults. An empty filename means defaults only.
func ReadConfig(filename string) (*Config, error) {
	cfg := NewConfig()
	if filename == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", filename, err)
	}
	return cfg, nil
}

// parseTopicFlag splits a "topic=event" flag value. The topic itself may contain '='.
func parseTopicFlag(v string) (TopicConfig, error) {
	i := strings.LastIndex(v, "=")
	if i <= 0 || i == len(v)-1 {
		return TopicConfig{}, fmt.Errorf("'%s' is not of the form topic_url=event", v)
	}
	return TopicConfig{Topic: v[:i], Event: v[i+1:]}, nil
}
