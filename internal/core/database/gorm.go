package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	zaplog "storyverse/internal/core/logger"
	"storyverse/internal/domain"
)

var ErrUnsupportedDriver = errors.New("database: unsupported driver")

type Opts struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string
	Logger             *zap.Logger // 可选：gorm 日志写到 zap
}

func NewGorm(o Opts) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch o.Driver {
	case "postgres":
		dial = postgres.Open(o.DSN)
	case "mysql":
		dsn := normalizeMySQLDSN(o.DSN, o.Username, o.Password)
		if o.Logger != nil {
			o.Logger.Info("mysql dsn", zap.String("dsn", maskDSN(dsn)))
		}
		dial = mysql.Open(dsn)
	case "sqlite":
		dial = sqlite.Open(o.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:                 newGormLogger(o.Logger, o.LogLevel),
		SkipDefaultTransaction: true, // 只在需要时手动开 Tx
		TranslateError:         true, // 唯一键/外键冲突 → gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated
		PrepareStmt:            o.Driver != "sqlite",
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxOpen, maxIdle := o.MaxOpenConns, o.MaxIdleConns
	if o.Driver == "sqlite" {
		// sqlite 单写者；内存库每个连接各自一份，必须常驻同一个连接
		maxOpen, maxIdle = 1, 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	return db, nil
}

// Migrate 建表 / 补列
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Story{},
		&domain.Contribution{},
		&domain.Comment{},
		&domain.StoryLike{},
		&domain.ContributionLike{},
	)
}

func newGormLogger(l *zap.Logger, level string) logger.Interface {
	lvl := logger.Warn
	switch level {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	if l == nil {
		return logger.Default.LogMode(lvl)
	}
	return logger.New(zaplog.ToStdLogger(l.Named("gorm"), zapcore.WarnLevel), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func maskDSN(dsn string) string {
	if at := strings.Index(dsn, "@"); at > 0 {
		if colon := strings.Index(dsn[:at], ":"); colon > 0 {
			return dsn[:colon+1] + "****" + dsn[at:]
		}
	}
	return dsn
}

// jdbcParams JDBC/Navicat 风格参数 → go-sql-driver 参数；空字符串表示直接丢弃
var jdbcParams = map[string]string{
	"characterEncoding":    "charset",
	"serverTimezone":       "loc",
	"useUnicode":           "",
	"zeroDateTimeBehavior": "",
}

// normalizeMySQLDSN 把 mysql:// 或 jdbc:mysql:// URL 改写成 user:pass@tcp(host)/db?...；
// 已经是 go-sql-driver 格式的 DSN 原样返回
func normalizeMySQLDSN(input, userOverride, passOverride string) string {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if !strings.HasPrefix(in, "mysql://") {
		return strings.TrimSpace(input)
	}
	u, err := url.Parse(in)
	if err != nil {
		return in // 交给驱动报错
	}

	q := u.Query()
	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	user = firstNonEmpty(userOverride, q.Get("user"), user)
	pass = firstNonEmpty(passOverride, q.Get("password"), pass)
	q.Del("user")
	q.Del("password")

	for from, to := range jdbcParams {
		if v := q.Get(from); v != "" && to != "" && q.Get(to) == "" {
			q.Set(to, v)
		}
		q.Del(from)
	}
	if v := strings.ToLower(q.Get("useSSL")); v != "" {
		switch v {
		case "true", "1":
			v = "true"
		case "skip-verify", "preferred":
		default:
			v = "false"
		}
		q.Set("tls", v)
		q.Del("useSSL")
	}
	if q.Get("parseTime") == "" {
		q.Set("parseTime", "true")
	}
	if q.Get("charset") == "" {
		q.Set("charset", "utf8mb4")
	}

	cred := user
	if pass != "" {
		cred += ":" + pass
	}
	if cred != "" {
		cred += "@"
	}
	dsn := fmt.Sprintf("%stcp(%s)/%s", cred, u.Host, strings.TrimPrefix(u.Path, "/"))
	if enc := q.Encode(); enc != "" {
		dsn += "?" + enc
	}
	return dsn
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
