package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name        string
	Env         string
	HTTP        HTTP
	Admin       AdminHTTP
	ClientURL   string   `mapstructure:"client_url"`   // 前端地址，OAuth 回调后跳转
	CORSOrigins []string `mapstructure:"cors_origins"` // 允许的跨域来源
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

// LogFile 文件切割（lumberjack）
type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int `mapstructure:"access_token_ttl_min"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type Google struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

type Auth struct {
	LocalLogin bool `mapstructure:"local_login"` // 邮箱+密码登录（首次自动注册）
	Google     Google
}

type Stories struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
	CacheTTLSec  int `mapstructure:"cache_ttl_sec"`
}

type Comments struct {
	DeletePolicy string `mapstructure:"delete_policy"` // open / author / author_or_admin
}

type Moderation struct {
	EnforceBans bool `mapstructure:"enforce_bans"`
}

type Limits struct {
	RPS          float64
	Burst        int
	IPRPS        float64 `mapstructure:"ip_rps"`
	IPBurst      int     `mapstructure:"ip_burst"`
	Concurrency  int64
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
	TimeoutSec   int   `mapstructure:"timeout_sec"`
}

// Tracing OpenTelemetry；endpoint 为空时导出到 stdout
type Tracing struct {
	Enable      bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	App        App
	Log        Log
	JWT        JWT
	DB         DB
	Redis      Redis `mapstructure:"redis"`
	Auth       Auth
	Stories    Stories
	Comments   Comments
	Moderation Moderation
	Limits     Limits
	Tracing    Tracing
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storyverse")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 5000)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.admin.host", "0.0.0.0")
	v.SetDefault("app.admin.port", 5001)
	v.SetDefault("app.client_url", "http://localhost:3000")
	v.SetDefault("app.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.filename", "logs/storyverse.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 14)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "storyverse")
	v.SetDefault("jwt.access_token_ttl_min", 60*24)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:storyverse.db?_foreign_keys=on")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("auth.local_login", false)
	v.SetDefault("auth.google.client_id", "")
	v.SetDefault("auth.google.client_secret", "")
	v.SetDefault("auth.google.callback_url", "http://localhost:5000/api/v1/auth/google/callback")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("stories.default_limit", 10)
	v.SetDefault("stories.max_limit", 100)
	v.SetDefault("stories.cache_ttl_sec", 30)

	v.SetDefault("comments.delete_policy", "open")
	v.SetDefault("moderation.enforce_bans", false)

	v.SetDefault("tracing.enable", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 0.1)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.ip_rps", 100.0/900) // 每 IP 15 分钟 100 次
	v.SetDefault("limits.ip_burst", 100)
	v.SetDefault("limits.concurrency", 300)
	v.SetDefault("limits.max_body_bytes", 1<<20)
	v.SetDefault("limits.timeout_sec", 10)
}

func Load(path string) *Config {
	c, err := LoadE(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return c
}

// LoadE 同 Load，但返回错误；配置文件不存在时只用默认值 + 环境变量
func LoadE(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, err
			}
		}
		log.Printf("[config] %s not found, using defaults + env", path)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if len(c.JWT.Secret) < 16 {
		return errors.New("jwt.secret must be at least 16 characters (APP_JWT_SECRET)")
	}
	switch c.Comments.DeletePolicy {
	case "open", "author", "author_or_admin":
	default:
		return errors.New("comments.delete_policy must be one of open, author, author_or_admin")
	}
	return nil
}
