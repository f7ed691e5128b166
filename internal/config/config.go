package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Terminal TerminalConfig
	Source   SourceConfig
	Trading  TradingConfig
	Runtime  RuntimeConfig
}

type TerminalConfig struct {
	Type           string `validate:"oneof=bridge paper"`
	URL            string `validate:"required_if=Type bridge"`
	ApiKey         string
	Magic          int64
	Comment        string
	RequestTimeout time.Duration `validate:"gt=0"`
}

type SourceConfig struct {
	Type     string `validate:"oneof=telegram mailbox replay"`
	Telegram TelegramConfig
	Mailbox  MailboxConfig
	Replay   ReplayConfig
}

type TelegramConfig struct {
	Token       string
	Chat        string
	PollTimeout int
}

type MailboxConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Subject      string
	PollInterval time.Duration
}

type ReplayConfig struct {
	Path string
}

type InstrumentConfig struct {
	TickSize  decimal.Decimal
	TickValue decimal.Decimal
	PipSize   decimal.Decimal
	Digits    int32 `validate:"gte=0,lte=10"`
}

type TradingConfig struct {
	Symbol            string `validate:"required"`
	Volume            decimal.Decimal
	TargetProfitUSD   decimal.Decimal
	UseMinimumVolume  bool
	MaxSLDistancePips decimal.Decimal
	SLPolicy          string `validate:"oneof=warn clamp reject"`
	EntryStrategy     string `validate:"oneof=auto min max"`
	CentralZone       decimal.Decimal
	PendingExpiration time.Duration `validate:"gte=0"`
	Instrument        InstrumentConfig
	BuySynonyms       []string
	SellSynonyms      []string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type AuditConfig struct {
	Driver string `validate:"oneof=jsonl sqlite none"`
	Path   string
}

type RuntimeConfig struct {
	DryRun            bool
	SweepInterval     time.Duration `validate:"gt=0"`
	StatusLogInterval time.Duration `validate:"gte=0"`
	HTTPAddr          string
	Log               LogConfig
	Audit             AuditConfig
}

// ConfigurationError is fatal: the process must not start processing messages with it.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("Ошибка конфигурации: %s", e.Reason)
	}
	return fmt.Sprintf("Ошибка конфигурации: %s: %s", e.Field, e.Reason)
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// Load reads .env (if present) and configs/config.* from the working directory.
func Load() (*Config, error) {
	return LoadFile("")
}

func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("не удалось прочитать файл: %v", err)}
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("terminal.type", "paper")
	v.SetDefault("terminal.magic", 234007)
	v.SetDefault("terminal.comment", "signalbot pending")
	v.SetDefault("terminal.request_timeout", 10*time.Second)

	v.SetDefault("source.type", "telegram")
	v.SetDefault("source.telegram.poll_timeout", 30)
	v.SetDefault("source.mailbox.port", 993)
	v.SetDefault("source.mailbox.poll_interval", time.Minute)

	v.SetDefault("trading.symbol", "XAUUSD")
	v.SetDefault("trading.volume", "0.01")
	v.SetDefault("trading.target_profit_usd", "5")
	v.SetDefault("trading.sl_policy", "warn")
	v.SetDefault("trading.entry_strategy", "auto")
	v.SetDefault("trading.central_zone", "0")
	v.SetDefault("trading.pending_expiration", 4*time.Hour)
	v.SetDefault("trading.instrument.tick_size", "0.01")
	v.SetDefault("trading.instrument.tick_value", "1")
	v.SetDefault("trading.instrument.pip_size", "0.1")
	v.SetDefault("trading.instrument.digits", 2)
	v.SetDefault("trading.buy_synonyms", []string{"buy", "long", "bullish", "compra", "largo"})
	v.SetDefault("trading.sell_synonyms", []string{"sell", "short", "bearish", "venta", "corto"})

	v.SetDefault("runtime.sweep_interval", 30*time.Second)
	v.SetDefault("runtime.status_log_interval", 5*time.Minute)
	v.SetDefault("runtime.log.level", "info")
	v.SetDefault("runtime.log.format", "text")
	v.SetDefault("runtime.log.max_size", 10)
	v.SetDefault("runtime.log.max_backups", 30)
	v.SetDefault("runtime.log.max_age", 30)
	v.SetDefault("runtime.audit.driver", "jsonl")
	v.SetDefault("runtime.audit.path", "data/tracked_orders.jsonl")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Terminal = TerminalConfig{
		Type:           strings.ToLower(v.GetString("terminal.type")),
		URL:            v.GetString("terminal.url"),
		ApiKey:         envSub(v, "terminal.api_key"),
		Magic:          v.GetInt64("terminal.magic"),
		Comment:        v.GetString("terminal.comment"),
		RequestTimeout: v.GetDuration("terminal.request_timeout"),
	}

	cfg.Source = SourceConfig{
		Type: strings.ToLower(v.GetString("source.type")),
		Telegram: TelegramConfig{
			Token:       envSub(v, "source.telegram.token"),
			Chat:        v.GetString("source.telegram.chat"),
			PollTimeout: v.GetInt("source.telegram.poll_timeout"),
		},
		Mailbox: MailboxConfig{
			Host:         v.GetString("source.mailbox.host"),
			Port:         v.GetInt("source.mailbox.port"),
			User:         envSub(v, "source.mailbox.user"),
			Password:     envSub(v, "source.mailbox.password"),
			Subject:      v.GetString("source.mailbox.subject"),
			PollInterval: v.GetDuration("source.mailbox.poll_interval"),
		},
		Replay: ReplayConfig{
			Path: v.GetString("source.replay.path"),
		},
	}

	cfg.Trading = TradingConfig{
		Symbol:            v.GetString("trading.symbol"),
		UseMinimumVolume:  v.GetBool("trading.use_minimum_volume"),
		SLPolicy:          strings.ToLower(v.GetString("trading.sl_policy")),
		EntryStrategy:     strings.ToLower(strings.TrimSpace(v.GetString("trading.entry_strategy"))),
		PendingExpiration: v.GetDuration("trading.pending_expiration"),
		BuySynonyms:       v.GetStringSlice("trading.buy_synonyms"),
		SellSynonyms:      v.GetStringSlice("trading.sell_synonyms"),
	}
	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"trading.volume", &cfg.Trading.Volume},
		{"trading.target_profit_usd", &cfg.Trading.TargetProfitUSD},
		{"trading.max_sl_distance_pips", &cfg.Trading.MaxSLDistancePips},
		{"trading.central_zone", &cfg.Trading.CentralZone},
		{"trading.instrument.tick_size", &cfg.Trading.Instrument.TickSize},
		{"trading.instrument.tick_value", &cfg.Trading.Instrument.TickValue},
		{"trading.instrument.pip_size", &cfg.Trading.Instrument.PipSize},
	}
	for _, d := range decimals {
		if *d.dst, err = decimalValue(v, d.key); err != nil {
			return nil, err
		}
	}
	cfg.Trading.Instrument.Digits = v.GetInt32("trading.instrument.digits")

	cfg.Runtime = RuntimeConfig{
		DryRun:            v.GetBool("runtime.dry_run"),
		SweepInterval:     v.GetDuration("runtime.sweep_interval"),
		StatusLogInterval: v.GetDuration("runtime.status_log_interval"),
		HTTPAddr:          v.GetString("runtime.http_addr"),
		Log: LogConfig{
			Level:      v.GetString("runtime.log.level"),
			Format:     v.GetString("runtime.log.format"),
			File:       v.GetString("runtime.log.file"),
			MaxSize:    v.GetInt("runtime.log.max_size"),
			MaxBackups: v.GetInt("runtime.log.max_backups"),
			MaxAge:     v.GetInt("runtime.log.max_age"),
			Compress:   v.GetBool("runtime.log.compress"),
		},
		Audit: AuditConfig{
			Driver: strings.ToLower(v.GetString("runtime.audit.driver")),
			Path:   v.GetString("runtime.audit.path"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigurationError{
				Field:  fe.Namespace(),
				Reason: fmt.Sprintf("не проходит проверку %q (значение %v)", fe.Tag(), fe.Value()),
			}
		}
		return &ConfigurationError{Reason: err.Error()}
	}

	t := c.Trading
	if t.TargetProfitUSD.IsNegative() {
		return &ConfigurationError{Field: "trading.target_profit_usd", Reason: "должно быть >= 0"}
	}
	if !t.UseMinimumVolume && !t.Volume.IsPositive() {
		return &ConfigurationError{Field: "trading.volume", Reason: "должно быть > 0"}
	}
	if t.MaxSLDistancePips.IsNegative() {
		return &ConfigurationError{Field: "trading.max_sl_distance_pips", Reason: "должно быть >= 0"}
	}
	if !t.Instrument.TickSize.IsPositive() || !t.Instrument.TickValue.IsPositive() || !t.Instrument.PipSize.IsPositive() {
		return &ConfigurationError{Field: "trading.instrument", Reason: "tick_size, tick_value и pip_size должны быть > 0"}
	}
	if len(t.BuySynonyms) == 0 || len(t.SellSynonyms) == 0 {
		return &ConfigurationError{Field: "trading.buy_synonyms/sell_synonyms", Reason: "списки синонимов не могут быть пустыми"}
	}

	switch c.Source.Type {
	case "telegram":
		if c.Source.Telegram.Token == "" || c.Source.Telegram.Chat == "" {
			return &ConfigurationError{Field: "source.telegram", Reason: "нужны token и chat"}
		}
	case "mailbox":
		if c.Source.Mailbox.Host == "" || c.Source.Mailbox.User == "" {
			return &ConfigurationError{Field: "source.mailbox", Reason: "нужны host и user"}
		}
	case "replay":
		if c.Source.Replay.Path == "" {
			return &ConfigurationError{Field: "source.replay.path", Reason: "путь не задан"}
		}
	}

	if c.Runtime.Audit.Driver != "none" && c.Runtime.Audit.Path == "" {
		return &ConfigurationError{Field: "runtime.audit.path", Reason: "путь не задан"}
	}
	return nil
}

func decimalValue(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ConfigurationError{Field: key, Reason: fmt.Sprintf("некорректное число %q", raw)}
	}
	return d, nil
}

var envPattern = regexp.MustCompile(`\$\{(\w+)\}`)

func envSub(v *viper.Viper, key string) string {
	val := v.GetString(key)
	if val == "" {
		return ""
	}

	return envPattern.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
