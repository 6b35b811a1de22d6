package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
)

// Environment variables holding credentials.
const (
	EnvProxyAPIKey = "PROXY_API_KEY"
	EnvWebhookURL  = "DISCORD_WEBHOOK"
)

// ErrMissingSecret is returned when a required credential is absent.
var ErrMissingSecret = errors.New("missing required secret")

// Secrets holds credentials that never live in the config file.
type Secrets struct {
	ProxyAPIKey string
	WebhookURL  string
}

// LoadSecrets reads credentials from the environment, loading a .env file
// first when one is present. requireWebhook is false for dry runs.
func LoadSecrets(requireWebhook bool, envFiles ...string) (Secrets, error) {
	_ = godotenv.Load(envFiles...)

	var s Secrets
	var ok bool
	if s.ProxyAPIKey, ok = EnvString(EnvProxyAPIKey); !ok {
		return Secrets{}, fmt.Errorf("%w: %s environment variable not set", ErrMissingSecret, EnvProxyAPIKey)
	}
	if s.WebhookURL, ok = EnvString(EnvWebhookURL); !ok && requireWebhook {
		return Secrets{}, fmt.Errorf("%w: %s environment variable not set", ErrMissingSecret, EnvWebhookURL)
	}
	return s, nil
}
