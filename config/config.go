package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/icodeforyou/ostrom-go/logging"
	"github.com/icodeforyou/ostrom-go/ostrom"
	"github.com/spf13/viper"
)

type AppConfigOstrom struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// "production" or "sandbox", default: "production"
	Environment *string `mapstructure:"environment"`
	// Override the endpoints of the environment, mostly useful for tests
	AuthURL *string `mapstructure:"auth_url"`
	DataURL *string `mapstructure:"data_url"`
	// If not assigned, the first contract of the account is used
	ContractID string `mapstructure:"contract_id"`
	// If not assigned, the zip code of the contract address is used
	Zip string `mapstructure:"zip"`
}

func (o AppConfigOstrom) GetEnvironment() string {
	if o.Environment == nil {
		return "production"
	}
	return *o.Environment
}

func (o AppConfigOstrom) GetEndpoints() (ostrom.Endpoints, error) {
	e, err := ostrom.EndpointsFor(o.GetEnvironment())
	if err != nil {
		return ostrom.Endpoints{}, err
	}
	if o.AuthURL != nil {
		e.Auth = *o.AuthURL
	}
	if o.DataURL != nil {
		e.Data = *o.DataURL
	}
	return e, nil
}

type AppConfigRefresh struct {
	// Cron spec for the scheduled refresh, default: minute 1 of every hour
	RunAt *string `mapstructure:"run_at"`
	// Delay before a failed refresh is retried, default: 10m
	RetryDelay *time.Duration `mapstructure:"retry_delay"`
	// Timeout of one refresh cycle, default: 1m
	Timeout *time.Duration `mapstructure:"timeout"`
}

func (r AppConfigRefresh) GetRunAt() string {
	if r.RunAt == nil {
		return "1 * * * *"
	}
	return *r.RunAt
}

func (r AppConfigRefresh) GetRetryDelay() time.Duration {
	if r.RetryDelay == nil {
		return 10 * time.Minute
	}
	return *r.RetryDelay
}

func (r AppConfigRefresh) GetTimeout() time.Duration {
	if r.Timeout == nil {
		return time.Minute
	}
	return *r.Timeout
}

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	Path string
	// How many days data should be stored in database before it gets purged
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
	// How many snapshots to keep, default: 48
	SnapshotsToKeep *int `mapstructure:"snapshots_to_keep"`
}

// GetDataRetentionDays defaults to 400 days so a whole contract year of
// consumption is kept.
func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 400
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

func (d AppConfigDatabase) GetSnapshotsToKeep() int {
	if d.SnapshotsToKeep == nil {
		return 48
	}
	return *d.SnapshotsToKeep
}

type AppConfigMqtt struct {
	Enabled  bool
	Host     string
	Port     int16
	Username string
	Password string
	ClientID *string `mapstructure:"client_id"`
	// Home Assistant discovery prefix, default: "homeassistant"
	DiscoveryPrefix *string `mapstructure:"discovery_prefix"`
	// Prefix of state, availability and command topics, default: "ostrom"
	BaseTopic *string `mapstructure:"base_topic"`
}

func (m AppConfigMqtt) GetClientID() string {
	if m.ClientID == nil {
		return ""
	}
	return *m.ClientID
}

func (m AppConfigMqtt) GetDiscoveryPrefix() string {
	if m.DiscoveryPrefix == nil {
		return "homeassistant"
	}
	return *m.DiscoveryPrefix
}

func (m AppConfigMqtt) GetBaseTopic() string {
	if m.BaseTopic == nil {
		return "ostrom"
	}
	return *m.BaseTopic
}

type AppConfigGui struct {
	// Timezone for calendar boundaries (today, this month, ...), default: Europe/Berlin
	Timezone *string `mapstructure:"timezone"`
}

func (g AppConfigGui) GetTimezone() string {
	if g.Timezone == nil {
		return "Europe/Berlin"
	}
	return *g.Timezone
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Ostrom   AppConfigOstrom
	Refresh  AppConfigRefresh
	Api      AppConfigApi
	Database AppConfigDatabase
	Mqtt     AppConfigMqtt
	Gui      AppConfigGui     `mapstructure:"gui"`
	Logging  AppConfigLogging `mapstructure:"logging"`
}

func (c *AppConfig) Validate() error {
	if c.Ostrom.ClientID == "" || c.Ostrom.ClientSecret == "" {
		return fmt.Errorf("ostrom.client_id and ostrom.client_secret are required")
	}
	if _, err := c.Ostrom.GetEndpoints(); err != nil {
		return err
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

func Load(path string) (*AppConfig, error) {
	return load(viper.GetViper(), path)
}

func load(v *viper.Viper, path string) (*AppConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	return &c, nil
}

// bindEnv makes secrets settable from the environment even when the config
// file leaves them out, AutomaticEnv alone only covers keys viper knows.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"ostrom.client_id",
		"ostrom.client_secret",
		"ostrom.environment",
		"ostrom.contract_id",
		"ostrom.zip",
		"mqtt.username",
		"mqtt.password",
	} {
		_ = v.BindEnv(key)
	}
}

// Watch calls onChange with the reloaded config every time the config file
// changes. Invalid files are logged and ignored.
func Watch(onChange func(*AppConfig)) {
	watch(viper.GetViper(), onChange)
}

func watch(v *viper.Viper, onChange func(*AppConfig)) {
	logger := slog.Default().With("module", "config")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var c AppConfig
		if err := v.Unmarshal(&c); err != nil {
			logger.Warn("ignoring invalid config change", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config file changed", slog.String("file", e.Name))
		onChange(&c)
	})
	v.WatchConfig()
}
