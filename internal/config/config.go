package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "QUIZROOM"

type Config struct {
	Bind          string        `mapstructure:"bind" validate:"required"`
	Port          int           `mapstructure:"port" validate:"min=1,max=65535"`
	DatabaseURL   string        `mapstructure:"database_url"`
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	TokenTTL      time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	WSTicketTTL   time.Duration `mapstructure:"ws_ticket_ttl" validate:"gt=0"`
	QuizDir       string        `mapstructure:"quiz_dir"`
	MaxPlayers    int           `mapstructure:"max_players" validate:"min=1,max=100"`
	SendBuffer    int           `mapstructure:"send_buffer" validate:"min=1"`
	WaitingTTL    time.Duration `mapstructure:"waiting_ttl" validate:"gt=0"`
	CompletedTTL  time.Duration `mapstructure:"completed_ttl" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	LogLevel      string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	DevLog        bool          `mapstructure:"dev_log"`
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

type option struct {
	key   string
	value any
	usage string
}

var options = []option{
	{"bind", "0.0.0.0", "address to bind to"},
	{"port", 8080, "port to listen on"},
	{"database_url", "", "postgres connection string; empty runs in memory only"},
	{"jwt_secret", "", "HMAC secret for bearer tokens and websocket tickets"},
	{"token_ttl", 24 * time.Hour, "lifetime of issued bearer tokens"},
	{"ws_ticket_ttl", 60 * time.Second, "lifetime of websocket tickets"},
	{"quiz_dir", "", "directory of yaml/json quizzes served by quiz_id"},
	{"max_players", 10, "default player limit for new rooms"},
	{"send_buffer", 16, "outbound events buffered per connection before it is dropped"},
	{"waiting_ttl", 30 * time.Minute, "evict unattended waiting rooms after this long"},
	{"completed_ttl", 5 * time.Minute, "evict unattended completed rooms after this long"},
	{"sweep_interval", time.Minute, "how often idle rooms are swept"},
	{"log_level", "info", "debug, info, warn or error"},
	{"dev_log", false, "human readable development logging"},
}

// New returns a viper instance with defaults and environment binding.
// PORT and DATABASE_URL are honoured as fallbacks for hosting platforms.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, o := range options {
		v.SetDefault(o.key, o.value)
	}
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("database_url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	return v
}

// BindFlags registers a flag per key on fs and binds it to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	for _, o := range options {
		name := strings.ReplaceAll(o.key, "_", "-")
		usage := fmt.Sprintf("%s (env: %s_%s)", o.usage, EnvPrefix, strings.ToUpper(o.key))
		switch d := o.value.(type) {
		case string:
			fs.String(name, d, usage)
		case int:
			fs.Int(name, d, usage)
		case bool:
			fs.Bool(name, d, usage)
		case time.Duration:
			fs.Duration(name, d, usage)
		}
	}
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
