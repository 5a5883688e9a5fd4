// loads up the .env files and environment used internally by Agora.

package config

import (
	"Agora/internal/errors"
	"Agora/internal/room"
	"Agora/internal/signal"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Transports the event channel can run on.
const (
	TransportWebsocket = "websocket"
	TransportRedis     = "redis"
)

// Config holds every setting of an Agora session.
type Config struct {
	Env     string
	Version string

	Transport string
	ServerURL string
	Token     string
	Secret    string
	APIBase   string

	RedisAddr     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	ChannelPrefix string

	SrvAddr  string
	SrvPort  string
	UIOrigin string

	Signals        signal.Options
	PingsPerSecond float64
	ReconnectDelay time.Duration
	DenyPaths      []string
}

// Addr is the listen address of the relay.
func (c Config) Addr() string {
	return c.SrvAddr + ":" + c.SrvPort
}

// uses go package: godotenv to load up an env file, then viper to read the environment with defaults.
// A missing envFile is not an error, the process environment alone is enough.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, staterr := os.Stat(envFile); staterr == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, err
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	def := signal.DefaultOptions()
	cfg := &Config{
		Env:     v.GetString("ENV"),
		Version: v.GetString("VERSION"),

		Transport: strings.ToLower(v.GetString("SYNC_TRANSPORT")),
		ServerURL: v.GetString("SYNC_SERVER_URL"),
		Token:     v.GetString("SYNC_TOKEN"),
		Secret:    v.GetString("SESSION_SECRET"),
		APIBase:   v.GetString("API_BASE_URL"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB_NUMBER"),
		ChannelPrefix: v.GetString("REDIS_CHANNEL_PREFIX"),

		SrvAddr:  v.GetString("SRV_ADDR"),
		SrvPort:  v.GetString("SRV_PORT"),
		UIOrigin: v.GetString("UI_ORIGIN"),

		Signals: signal.Options{
			ActivityTimeout:   durationOr(v.GetDuration("ACTIVITY_TIMEOUT"), def.ActivityTimeout),
			ActivityFeedMax:   intOr(v.GetInt("ACTIVITY_FEED_MAX"), def.ActivityFeedMax),
			StatusTimeout:     durationOr(v.GetDuration("STATUS_TIMEOUT"), def.StatusTimeout),
			AlertMax:          intOr(v.GetInt("ALERT_MAX"), def.AlertMax),
			AlertDropInterval: durationOr(v.GetDuration("ALERT_DROP_INTERVAL"), def.AlertDropInterval),
		},
		PingsPerSecond: v.GetFloat64("ACTIVITY_PINGS_PER_SEC"),
		ReconnectDelay: durationOr(v.GetDuration("RECONNECT_DELAY"), 2*time.Second),
		DenyPaths:      splitList(v.GetString("REALTIME_DENY_PATHS")),
	}
	if len(cfg.DenyPaths) == 0 {
		cfg.DenyPaths = room.DefaultDenyPaths
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "PROD")
	v.SetDefault("VERSION", "dev")
	v.SetDefault("SYNC_TRANSPORT", TransportWebsocket)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB_NUMBER", 0)
	v.SetDefault("REDIS_CHANNEL_PREFIX", "agora:")
	v.SetDefault("SRV_ADDR", "127.0.0.1")
	v.SetDefault("SRV_PORT", "8086")
	v.SetDefault("UI_ORIGIN", "http://localhost:3000")
	v.SetDefault("ACTIVITY_PINGS_PER_SEC", 1.0)
}

// Helper to check the settings the session can't start without.
func (c *Config) validate() error {
	var errs []error
	switch c.Transport {
	case TransportWebsocket:
		if c.ServerURL == "" {
			errs = append(errs, errors.New("SYNC_SERVER_URL:required by the websocket transport"))
		}
	case TransportRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR:required by the redis transport"))
		}
	default:
		errs = append(errs, errors.New("SYNC_TRANSPORT:must be websocket or redis"))
	}
	if c.APIBase == "" {
		errs = append(errs, errors.New("API_BASE_URL:required"))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("SYNC_TOKEN:required"))
	}
	if len(errs) > 0 {
		return errors.GenerateValidationErrorResponse(errs)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func intOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
