package config

import (
	"os"
	"strconv"
	"time"
)

// Client captures presence client configuration.
type Client struct {
	BaseURL           string
	Token             string
	PushEnabled       bool
	KeepAliveInterval time.Duration
	ReconnectDelay    time.Duration
	PollInterval      time.Duration
	RequestTimeout    time.Duration
}

// Simulator captures configuration for the development backend.
type Simulator struct {
	Addr             string
	Environment      string
	JWTSigningKey    string
	TokenTTL         time.Duration
	ClientID         string
	ClientSecret     string
	RedisURL         string
	Seed             int64
	ActivityInterval time.Duration
	UsersInterval    time.Duration
	SweepInterval    time.Duration
	IdleTimeout      time.Duration
	Retention        time.Duration
}

// ClientFromEnv builds a Client config from environment variables so main stays lean.
func ClientFromEnv() Client {
	baseURL := os.Getenv("VIGIL_API_BASE")
	if baseURL == "" {
		baseURL = "http://localhost:8081/api/online-users"
	}

	push := true
	if os.Getenv("VIGIL_PUSH") == "false" {
		push = false
	}

	return Client{
		BaseURL:           baseURL,
		Token:             os.Getenv("VIGIL_TOKEN"),
		PushEnabled:       push,
		KeepAliveInterval: envDuration("VIGIL_KEEPALIVE_INTERVAL", 30*time.Second),
		ReconnectDelay:    envDuration("VIGIL_RECONNECT_DELAY", 3*time.Second),
		PollInterval:      envDuration("VIGIL_POLL_INTERVAL", 15*time.Second),
		RequestTimeout:    envDuration("VIGIL_REQUEST_TIMEOUT", 10*time.Second),
	}
}

// SimulatorFromEnv builds a Simulator config from environment variables.
func SimulatorFromEnv() Simulator {
	addr := os.Getenv("VIGIL_SIM_ADDR")
	if addr == "" {
		addr = ":8081"
	}

	env := os.Getenv("VIGIL_ENV")
	if env == "" {
		env = "dev"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development fallback, shared with tokengen. Set the env var
		// anywhere tokens must not be forgeable.
		jwtSigningKey = "vigil-dev-signing-key-not-for-production"
	}

	clientID := os.Getenv("VIGIL_SIM_CLIENT_ID")
	if clientID == "" {
		clientID = "admin-console"
	}

	clientSecret := os.Getenv("VIGIL_SIM_CLIENT_SECRET")
	if clientSecret == "" {
		clientSecret = "dev-console-secret"
	}

	return Simulator{
		Addr:             addr,
		Environment:      env,
		JWTSigningKey:    jwtSigningKey,
		TokenTTL:         envDuration("TOKEN_TTL", time.Hour),
		ClientID:         clientID,
		ClientSecret:     clientSecret,
		RedisURL:         os.Getenv("VIGIL_SIM_REDIS_URL"),
		Seed:             envInt64("VIGIL_SIM_SEED", 1),
		ActivityInterval: envDuration("VIGIL_SIM_ACTIVITY_INTERVAL", 2*time.Second),
		UsersInterval:    envDuration("VIGIL_SIM_USERS_INTERVAL", 10*time.Second),
		SweepInterval:    envDuration("VIGIL_SIM_SWEEP_INTERVAL", time.Minute),
		IdleTimeout:      envDuration("VIGIL_SIM_IDLE_TIMEOUT", 10*time.Minute),
		Retention:        envDuration("VIGIL_SIM_RETENTION", 30*time.Minute),
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return def
}

func envInt64(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return def
}
