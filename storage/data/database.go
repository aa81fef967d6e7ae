// Copyright 2026 giftrec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/cenkalti/backoff/v5"
	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/config"
	"github.com/giftwise/giftrec/dataset"
	"github.com/giftwise/giftrec/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var ErrNoDatabase = errors.NotAssignedf("database")

// Database stores interactions and products.
type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertInteractions(ctx context.Context, interactions []dataset.Interaction) error
	BatchInsertProducts(ctx context.Context, products []dataset.Product) error
	GetInteractions(ctx context.Context) ([]dataset.Interaction, error)
	GetProducts(ctx context.Context) ([]dataset.Product, error)
	CountInteractions(ctx context.Context) (int, error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	database := new(SQLDatabase)
	database.TablePrefix = storage.TablePrefix(tablePrefix)
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		database.driver = MySQL
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database.driver = Postgres
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		name := path[len(storage.SQLitePrefix):]
		if name, err = storage.AppendURLParams(name, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		database.driver = SQLite
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig())
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}

// Connect opens the configured database and pings it until it answers or the retry timeout
// elapses. Tables are created if missing.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (Database, error) {
	database, err := Open(cfg.DataStore, cfg.TablePrefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if sqlDB, ok := database.(*SQLDatabase); ok {
		sqlDB.client.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.client.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.client.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	opts := []backoff.RetryOption{backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(cfg.RetryTimeout)}
	if cfg.RetryTimeout <= 0 {
		opts = append(opts, backoff.WithMaxTries(1))
	}
	dataStore := log.RedactDBURL(cfg.DataStore)
	if _, err = backoff.Retry(ctx, func() (struct{}, error) {
		if err := database.Ping(); err != nil {
			log.Logger().Warn("failed to ping database, retrying",
				zap.String("data_store", dataStore), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, opts...); err != nil {
		_ = database.Close()
		return nil, errors.Annotate(err, "failed to connect to database")
	}
	if err = database.Init(); err != nil {
		_ = database.Close()
		return nil, errors.Trace(err)
	}
	log.Logger().Info("connect to database", zap.String("data_store", dataStore))
	return database, nil
}
