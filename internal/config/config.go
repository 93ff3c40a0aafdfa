package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	RoomCapacity   int           `mapstructure:"room_capacity"`
	ReservationTTL time.Duration `mapstructure:"reservation_ttl"`
	Backpressure   string        `mapstructure:"backpressure"`

	MessageRate   float64       `mapstructure:"message_rate"`
	MessageBurst  int           `mapstructure:"message_burst"`
	MatchLimit    int           `mapstructure:"match_limit"`
	MatchInterval time.Duration `mapstructure:"match_interval"`

	CORSOrigins   []string `mapstructure:"cors_origins"`
	ICEServerURLs []string `mapstructure:"ice_servers"`
}

// ICEServers returns the STUN servers clients should use, one per URL.
func (c *Config) ICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServerURLs))
	for _, u := range c.ICEServerURLs {
		out = append(out, webrtc.ICEServer{URLs: []string{u}})
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		errs = append(errs, fmt.Errorf("ping_period (%s) must be positive and shorter than pong_wait (%s)", c.PingPeriod, c.PongWait))
	}
	if c.RoomCapacity != 0 && c.RoomCapacity < 2 {
		errs = append(errs, fmt.Errorf("room_capacity %d must be 0 or at least 2", c.RoomCapacity))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("send_buffer %d must be positive", c.SendBuffer))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, fmt.Errorf("read_limit %d must be positive", c.ReadLimit))
	}
	for _, u := range c.ICEServerURLs {
		if !strings.HasPrefix(u, "stun:") && !strings.HasPrefix(u, "stuns:") {
			errs = append(errs, fmt.Errorf("ice server %q is not a stun url", u))
		}
	}
	return errors.Join(errs...)
}

// Loader owns the viper instance so the config can be re-read on change.
type Loader struct {
	v        *viper.Viper
	fileName string
	fromFile bool
}

// NewLoader reads config/config.<env>.yaml (env from --config-env, then
// CONFIG_ENV, default dev), environment variables and bound flags.
func NewLoader(flags *pflag.FlagSet) (*Loader, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if flags != nil {
		if f := flags.Lookup("config-env"); f != nil && f.Changed {
			env = f.Value.String()
		}
	}
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("port", "PORT", "RELAY_PORT"); err != nil {
		return nil, err
	}

	if flags != nil {
		for key, name := range map[string]string{"port": "port", "mode": "mode", "log_level": "log-level", "static_path": "static"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	l := &Loader{v: v, fileName: fileName}
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		l.fromFile = true
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}
	return l, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("static_path", "./public")
	v.SetDefault("read_limit", 64*1024)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("log_level", "info")
	v.SetDefault("room_capacity", 2)
	v.SetDefault("reservation_ttl", "30s")
	v.SetDefault("backpressure", "kick")
	v.SetDefault("message_rate", 50)
	v.SetDefault("message_burst", 100)
	v.SetDefault("match_limit", 30)
	v.SetDefault("match_interval", "1m")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("ice_servers", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
	})
}

func (l *Loader) Load() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Secret == "" {
		cfg.Secret = uuid.NewString()
		l.v.Set("secret", cfg.Secret)
		log.Warn().Str("module", "config").Msg("no secret configured, session cookies will not survive restarts")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Msg("config ready")
	return &cfg, nil
}

// Watch calls fn with the re-read config whenever the config file changes.
// It does nothing when no file was loaded.
func (l *Loader) Watch(fn func(*Config)) {
	if !l.fromFile {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config changed")
		cfg, err := l.Load()
		if err != nil {
			log.Error().Err(err).Str("module", "config").Msg("reload rejected")
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

// Load is a shortcut for NewLoader(nil).Load().
func Load() (*Config, error) {
	l, err := NewLoader(nil)
	if err != nil {
		return nil, err
	}
	return l.Load()
}
