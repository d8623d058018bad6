package postgresdb

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/pkg/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Database struct {
	log logger.Logger
	*sqlx.DB
}

// DSN builds a postgres:// URL, escaping credentials and the database name.
func DSN(cfg config.DBConfig) string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return dsn.String()
}

func NewPostgresDB(ctx context.Context, cfg config.DBConfig, log logger.Logger) (*Database, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(2 * time.Hour)

	log.Info("Connected to postgres",
		logger.StringField("host", cfg.Host),
		logger.StringField("database", cfg.Name),
	)

	return &Database{log: log, DB: db}, nil
}

func (db *Database) Close() error {
	db.log.Info("Closing database connection")
	return db.DB.Close()
}
