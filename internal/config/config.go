package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	Google struct {
		ClientID     string
		ClientSecret string
		TokenFile    string
	}

	Trello struct {
		Key           string
		Token         string
		WebhookSecret string
	}

	StatusMapPath  string
	SyncInterval   time.Duration
	GatewayTimeout time.Duration

	PrometheusEnabled bool
	TrustedProxies    []string
}

// CallbackURL returns the externally reachable URL the board service posts
// notifications to. It must match the URL registered with the webhook, since
// signatures are computed over it.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/webhooks/board"
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		var missing []string
		if host == "" {
			missing = append(missing, "APP_DB_HOST")
		}
		if name == "" {
			missing = append(missing, "APP_DB_NAME")
		}
		if user == "" {
			missing = append(missing, "APP_DB_USER")
		}
		if password == "" {
			missing = append(missing, "APP_DB_PASSWORD")
		}

		if len(missing) == 0 {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.Google.ClientID = os.Getenv("APP_GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = os.Getenv("APP_GOOGLE_CLIENT_SECRET")
	cfg.Google.TokenFile = getenvDefault("APP_GOOGLE_TOKEN_FILE", "token.json")
	cfg.Trello.Key = os.Getenv("APP_TRELLO_KEY")
	cfg.Trello.Token = os.Getenv("APP_TRELLO_TOKEN")
	cfg.Trello.WebhookSecret = os.Getenv("APP_TRELLO_WEBHOOK_SECRET")
	cfg.StatusMapPath = os.Getenv("APP_STATUS_MAP_PATH")
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	var err error
	cfg.SyncInterval, err = getenvDuration("APP_SYNC_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.GatewayTimeout, err = getenvDuration("APP_GATEWAY_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		return nil, errors.New("google calendar configuration is required: APP_GOOGLE_CLIENT_ID and APP_GOOGLE_CLIENT_SECRET")
	}
	if cfg.Trello.Key == "" || cfg.Trello.Token == "" {
		return nil, errors.New("board configuration is required: APP_TRELLO_KEY and APP_TRELLO_TOKEN")
	}
	if cfg.SyncInterval < time.Second {
		return nil, fmt.Errorf("APP_SYNC_INTERVAL must be at least 1s (got %s)", cfg.SyncInterval)
	}

	if cfg.Trello.WebhookSecret == "" {
		fmt.Println("WARNING: No APP_TRELLO_WEBHOOK_SECRET configured. Board webhook signatures will not be verified.")
	}
	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No APP_TRUSTED_PROXIES configured. BoardCal will trust all proxies - Not recommended for public environments.")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
