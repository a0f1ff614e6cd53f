package whatsapp

import (
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v21.0"
	defaultTimeout    = 15 * time.Second
)

// Config points the client at one WhatsApp Business phone number.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration
}

// LoadConfigFromEnv reads:
//   - SUPREME_WHATSAPP_ACCESS_TOKEN
//   - SUPREME_WHATSAPP_PHONE_NUMBER_ID
//   - SUPREME_WHATSAPP_BASE_URL (default https://graph.facebook.com)
//   - SUPREME_WHATSAPP_API_VERSION (default v21.0)
//   - SUPREME_WHATSAPP_TIMEOUT (default 15s)
//
// Missing credentials are not an error; Enabled reports false and the send route answers 503.
func LoadConfigFromEnv() Config {
	cfg := Config{
		AccessToken:   strings.TrimSpace(os.Getenv("SUPREME_WHATSAPP_ACCESS_TOKEN")),
		PhoneNumberID: strings.TrimSpace(os.Getenv("SUPREME_WHATSAPP_PHONE_NUMBER_ID")),
		BaseURL:       strings.TrimSpace(os.Getenv("SUPREME_WHATSAPP_BASE_URL")),
		APIVersion:    strings.TrimSpace(os.Getenv("SUPREME_WHATSAPP_API_VERSION")),
		Timeout:       defaultTimeout,
	}
	if v := strings.TrimSpace(os.Getenv("SUPREME_WHATSAPP_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Enabled reports whether credentials are present.
func (c Config) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

func (c Config) messagesURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", ErrNotConfigured
	}
	return u.JoinPath(c.APIVersion, c.PhoneNumberID, "messages").String(), nil
}
