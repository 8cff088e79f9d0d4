package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	BackendPostgres = "postgresql"
	BackendSqlite   = "sqlite"
)

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DbName   string `toml:"dbname"`
	SslMode  string `toml:"sslmode"`
}

// Dsn renders the connection string for the pgx stdlib driver.
func (c PostgresConfig) Dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DbName, c.SslMode)
}

type SqliteConfig struct {
	Path string `toml:"path"`
}

type PoolConfig struct {
	MaxConns  int `toml:"max_conns"`
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

type ConfigParam struct {
	Backend    string         `toml:"backend"`
	Postgres   PostgresConfig `toml:"postgresql"`
	Sqlite     SqliteConfig   `toml:"sqlite"`
	Pool       PoolConfig     `toml:"pool"`
	TenantList []string       `toml:"tenants"`
}

var cfg *ConfigParam

func Config() *ConfigParam {
	return cfg
}

func defaultConfig() *ConfigParam {
	return &ConfigParam{
		Backend: BackendPostgres,
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "metastore_api",
			DbName:  "metastore",
			SslMode: "disable",
		},
		Sqlite: SqliteConfig{
			Path: "metastore.db",
		},
		Pool: PoolConfig{
			MaxConns:  16,
			Workers:   16,
			QueueSize: 64,
		},
	}
}

func LoadConfig(filename string) error {
	if filename == "" {
		cfg = defaultConfig()
		return nil
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	cp := defaultConfig()
	if _, err := toml.Decode(string(content), cp); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}
	if cp.Backend != BackendPostgres && cp.Backend != BackendSqlite {
		return fmt.Errorf("unsupported backend: %s", cp.Backend)
	}
	cfg = cp
	return nil
}
