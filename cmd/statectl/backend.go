package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/state/internal/config"
	"github.com/vango-dev/state/internal/errors"
	"github.com/vango-dev/state/pkg/persist"

	_ "modernc.org/sqlite"
)

// openBackend opens the storage driver named in cfg. The returned func
// releases it.
func openBackend(ctx context.Context, cfg *config.Config) (persist.Backend, func() error, error) {
	s := cfg.Storage
	switch s.Driver {
	case config.DriverMemory:
		b := persist.NewMemoryBackend()
		return b, b.Close, nil

	case config.DriverFile:
		b := persist.NewFileBackend(cfg.StoragePath())
		return b, b.Close, nil

	case config.DriverSQLite:
		dsn := s.DSN
		plainPath := dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
		if plainPath && !filepath.IsAbs(dsn) && cfg.Dir() != "" {
			dsn = filepath.Join(cfg.Dir(), dsn)
		}
		if plainPath {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, nil, errors.New("E201").Wrap(err)
			}
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, errors.New("E201").Wrap(err)
		}
		if dsn == ":memory:" {
			db.SetMaxOpenConns(1)
		}
		b := persist.NewSQLBackend(db,
			persist.WithSQLTableName(s.Table),
			persist.WithSQLDialect(persist.DialectSQLite),
		)
		if err := b.CreateTable(ctx); err != nil {
			db.Close()
			return nil, nil, errors.New("E204").Wrap(err)
		}
		return b, func() error {
			_ = b.Close()
			return db.Close()
		}, nil

	case config.DriverS3:
		client := persist.NewS3Client(persist.S3ClientConfig{
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			UsePathStyle:    s.PathStyle,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
		})
		b := persist.NewS3Backend(client, s.Bucket, s.Prefix)
		return b, b.Close, nil
	}

	return nil, nil, errors.New("E104").WithDetailf("storage.driver is %q", s.Driver)
}
