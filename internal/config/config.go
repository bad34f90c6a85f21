package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Chrome   ChromeConfig   `mapstructure:"chrome"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Script   ScriptConfig   `mapstructure:"script"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	Mode         string `mapstructure:"mode"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	// Enabled switches recordings from the in-memory store to MySQL.
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	Charset  string `mapstructure:"charset"`
}

type JWTConfig struct {
	// Secret enables bearer-token auth on the API when non-empty.
	Secret     string `mapstructure:"secret"`
	ExpireTime int    `mapstructure:"expire_time"`
}

type ChromeConfig struct {
	HeadlessMode bool    `mapstructure:"headless"`
	ExecPath     string  `mapstructure:"exec_path"`
	HoverRate    float64 `mapstructure:"hover_rate"`
}

type RecorderConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
	CloseGrace    time.Duration `mapstructure:"close_grace"`
}

// ScriptConfig holds the defaults baked into generated scripts.
type ScriptConfig struct {
	Browser    string `mapstructure:"browser"`
	Timeout    int    `mapstructure:"timeout"`
	MaxRetries int    `mapstructure:"max_retries"`
	MaxPages   int    `mapstructure:"max_pages"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// envNames keeps the deployment variable names that predate the config file.
var envNames = map[string]string{
	"server.port":          "SERVER_PORT",
	"server.host":          "SERVER_HOST",
	"server.mode":          "SERVER_MODE",
	"server.read_timeout":  "SERVER_READ_TIMEOUT",
	"server.write_timeout": "SERVER_WRITE_TIMEOUT",
	"database.enabled":     "DB_ENABLED",
	"database.host":        "DB_HOST",
	"database.port":        "DB_PORT",
	"database.username":    "DB_USERNAME",
	"database.password":    "DB_PASSWORD",
	"database.name":        "DB_NAME",
	"database.charset":     "DB_CHARSET",
	"jwt.secret":           "JWT_SECRET",
	"jwt.expire_time":      "JWT_EXPIRE_TIME",
	"chrome.headless":      "CHROME_HEADLESS",
	"chrome.exec_path":     "CHROME_PATH",
}

// SetDefaults registers every key with its default.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "looprec")
	v.SetDefault("database.charset", "utf8mb4")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire_time", 24*3600)

	v.SetDefault("chrome.headless", false)
	v.SetDefault("chrome.exec_path", "")
	v.SetDefault("chrome.hover_rate", 10.0)

	v.SetDefault("recorder.idle_timeout", "30m")
	v.SetDefault("recorder.sweep_schedule", "@every 1m")
	v.SetDefault("recorder.close_grace", "5s")

	v.SetDefault("script.browser", "chrome")
	v.SetDefault("script.timeout", 10)
	v.SetDefault("script.max_retries", 3)
	v.SetDefault("script.max_pages", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "looprec")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// Bind wires environment lookups into v: LOOPREC_<SECTION>_<KEY> for every
// key, plus the legacy names in envNames.
func Bind(v *viper.Viper) error {
	v.SetEnvPrefix("LOOPREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envNames {
		if err := v.BindEnv(key, "LOOPREC_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// LoadConfig builds the configuration from defaults, an optional config file
// and the environment. An empty cfgFile looks for ./config.yaml and carries
// on without it.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)
	if err := Bind(v); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}
