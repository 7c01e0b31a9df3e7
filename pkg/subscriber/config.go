package subscriber

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultHubURL is the hub subscription requests are sent to when none is configured.
	DefaultHubURL = "https://api.twitch.tv/helix/webhooks/hub"

	// DefaultLeaseSeconds is 10 days.
	DefaultLeaseSeconds = 864000
)

var validate = validator.New()

// Config is the configuration information for a Subscriber
type Config struct {
	// ClientID is sent to the hub in the Client-ID header.
	ClientID string `yaml:"clientID" validate:"required"`
	// CallbackURL is the public URL the hub delivers to. The subscription id is appended as a query parameter.
	CallbackURL string `yaml:"callbackURL" validate:"required,url"`
	HubURL      string `yaml:"hubURL" validate:"required,url"`
	// LeaseSeconds is requested with every subscription. It is never renewed.
	LeaseSeconds int `yaml:"leaseSeconds" validate:"min=1"`
	// StrictDestroy makes Destroy return the unsubscribe failures it collected instead of only logging them.
	StrictDestroy bool `yaml:"strictDestroy"`
}

// NewConfig returns the default config for Subscriber
func NewConfig() *Config {
	return &Config{
		HubURL:       DefaultHubURL,
		LeaseSeconds: DefaultLeaseSeconds,
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid subscriber config: %w", err)
	}
	return nil
}
