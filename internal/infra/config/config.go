package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/THEROER/DoubleLife/internal/core/domain"
)

const envPrefix = "DOUBLELIFE"

type AppConfig struct {
	App        AppSettings        `mapstructure:"app"`
	Auth       AuthSettings       `mapstructure:"auth"`
	Store      StoreSettings      `mapstructure:"store"`
	Postgres   PostgresSettings   `mapstructure:"postgres"`
	Redis      RedisSettings      `mapstructure:"redis"`
	Kafka      KafkaSettings      `mapstructure:"kafka"`
	Telemetry  TelemetrySettings  `mapstructure:"telemetry"`
	Bridge     BridgeSettings     `mapstructure:"bridge"`
	Grants     GrantSettings      `mapstructure:"grants"`
	DoubleLife DoubleLifeSettings `mapstructure:"doublelife"`
	Webhook    WebhookSettings    `mapstructure:"webhook"`
}

type AppSettings struct {
	Name       string `mapstructure:"name"`
	Env        string `mapstructure:"env"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	ServerName string `mapstructure:"server_name"`
}

// AuthSettings configures bearer token checks on the HTTP API. An empty secret disables auth.
type AuthSettings struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// StoreSettings selects the session store backend: "redis" or "postgres".
type StoreSettings struct {
	Driver string `mapstructure:"driver"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	DB            int    `mapstructure:"db"`
	Password      string `mapstructure:"password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled"`
	SessionPrefix string `mapstructure:"session_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// BridgeSettings points at the game server bridge that owns live principal state.
type BridgeSettings struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GrantSettings selects the permission backend: "luckperms" (REST) or "postgres".
type GrantSettings struct {
	Driver    string            `mapstructure:"driver"`
	LuckPerms LuckPermsSettings `mapstructure:"luckperms"`
}

type LuckPermsSettings struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DoubleLifeSettings struct {
	Enabled         bool                      `mapstructure:"enabled"`
	DefaultDuration int                       `mapstructure:"default_duration"`
	TemporaryGroup  string                    `mapstructure:"temporary_group"`
	SweepInterval   time.Duration             `mapstructure:"sweep_interval"`
	ShowBossBar     bool                      `mapstructure:"show_bossbar"`
	BossBarColor    string                    `mapstructure:"bossbar_color"`
	BossBarStyle    string                    `mapstructure:"bossbar_style"`
	Commands        domain.LifecycleCommands  `mapstructure:"commands"`
	Profiles        map[string]domain.Profile `mapstructure:"profiles"`
}

type WebhookSettings struct {
	Enabled          bool          `mapstructure:"enabled"`
	URL              string        `mapstructure:"url"`
	StartMessage     string        `mapstructure:"start_message"`
	EndMessage       string        `mapstructure:"end_message"`
	ActionLog        bool          `mapstructure:"action_log"`
	ActionMessage    string        `mapstructure:"action_message"`
	BatchWindow      time.Duration `mapstructure:"batch_window"`
	BatchMaxEntries  int           `mapstructure:"batch_max_entries"`
	BatchEdit        bool          `mapstructure:"batch_edit"`
	RetryFloor       time.Duration `mapstructure:"retry_floor"`
	RequestsPerSec   float64       `mapstructure:"requests_per_second"`
	Burst            int           `mapstructure:"burst"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TransientRetries uint          `mapstructure:"transient_retries"`
}

// Active reports whether notifications can be sent at all.
func (w WebhookSettings) Active() bool {
	return w.Enabled && strings.TrimSpace(w.URL) != ""
}

// ProfileList returns the configured profiles ordered by name, with Name filled from the map key.
func (d DoubleLifeSettings) ProfileList() []domain.Profile {
	out := make([]domain.Profile, 0, len(d.Profiles))
	for name, p := range d.Profiles {
		p.Name = name
		if p.GroupName == "" {
			p.GroupName = name
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load reads defaults, an optional doublelife.yaml and the environment.
func Load(paths ...string) (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	v.SetConfigName("doublelife")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.server_name",
		"auth.jwt_secret",
		"auth.issuer",
		"store.driver",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.session_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"bridge.base_url",
		"bridge.token",
		"bridge.timeout",
		"grants.driver",
		"grants.luckperms.base_url",
		"grants.luckperms.api_key",
		"grants.luckperms.timeout",
		"doublelife.enabled",
		"doublelife.default_duration",
		"doublelife.temporary_group",
		"doublelife.sweep_interval",
		"doublelife.show_bossbar",
		"doublelife.bossbar_color",
		"doublelife.bossbar_style",
		"webhook.enabled",
		"webhook.url",
		"webhook.start_message",
		"webhook.end_message",
		"webhook.action_log",
		"webhook.action_message",
		"webhook.batch_window",
		"webhook.batch_max_entries",
		"webhook.batch_edit",
		"webhook.retry_floor",
		"webhook.requests_per_second",
		"webhook.burst",
		"webhook.timeout",
		"webhook.transient_retries",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.DoubleLife.Profiles) == 0 {
		cfg.DoubleLife.Profiles = domain.DefaultProfiles()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "doublelife-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.server_name", "minecraft")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "doublelife")

	v.SetDefault("store.driver", "redis")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "doublelife")
	v.SetDefault("postgres.password", "doublelife_password")
	v.SetDefault("postgres.database", "doublelife")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.session_prefix", "doublelife:session")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "doublelife")
	v.SetDefault("kafka.async", true)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "doublelife-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("bridge.base_url", "http://localhost:8765")
	v.SetDefault("bridge.token", "")
	v.SetDefault("bridge.timeout", "5s")

	v.SetDefault("grants.driver", "luckperms")
	v.SetDefault("grants.luckperms.base_url", "http://localhost:8081")
	v.SetDefault("grants.luckperms.api_key", "")
	v.SetDefault("grants.luckperms.timeout", "5s")

	v.SetDefault("doublelife.enabled", true)
	v.SetDefault("doublelife.default_duration", 1800)
	v.SetDefault("doublelife.temporary_group", "doublelife")
	v.SetDefault("doublelife.sweep_interval", "1s")
	v.SetDefault("doublelife.show_bossbar", true)
	v.SetDefault("doublelife.bossbar_color", domain.StatusColorGreen)
	v.SetDefault("doublelife.bossbar_style", domain.StatusStyleSolid)

	v.SetDefault("webhook.enabled", true)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.start_message", "```fix\\nDoubleLife Started\\nPlayer: {player}\\nProfile: {profile}\\nDuration: {duration}\\n```")
	v.SetDefault("webhook.end_message", "```diff\\n- DoubleLife Ended\\nPlayer: {player}\\nProfile: {profile}\\n```")
	v.SetDefault("webhook.action_log", true)
	v.SetDefault("webhook.action_message", "```yaml\\nDoubleLife Action\\nPlayer: {player}\\nAction: {action}\\nDetails: {details}\\n```")
	v.SetDefault("webhook.batch_window", "2s")
	v.SetDefault("webhook.batch_max_entries", 25)
	v.SetDefault("webhook.batch_edit", true)
	v.SetDefault("webhook.retry_floor", "3s")
	v.SetDefault("webhook.requests_per_second", 1.0)
	v.SetDefault("webhook.burst", 5)
	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("webhook.transient_retries", 3)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
