// Package storage opens the attainment store of the configured database engine.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/outcomes/core"
	"github.com/trezcool/outcomes/core/attainment"
	"github.com/trezcool/outcomes/storage/database"
	"github.com/trezcool/outcomes/storage/database/bolt"
	"github.com/trezcool/outcomes/storage/database/dummy"
	"github.com/trezcool/outcomes/storage/database/sqlx"
)

const (
	EnginePostgres = "postgres"
	EngineBolt     = "bolt"
	EngineDummy    = "dummy"
)

// Store is an attainment repository that also imports datasets.
type Store interface {
	attainment.Repository
	Import(ctx context.Context, ds attainment.Dataset) error
}

type store struct {
	Store
	close func() error
}

func (s store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open opens the store of conf.Database.Engine.
// With setUp, a postgres database is created if needed and migrated up.
func Open(conf *core.Config, setUp bool) (Store, func() error, error) {
	switch conf.Database.Engine {
	case EnginePostgres, "":
		if setUp {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, nil, err
			}
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if setUp {
			if err = database.Migrate(db.DB, "up"); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		s := store{Store: sqlxrepos.NewAttainmentRepository(db), close: db.Close}
		return s, s.Close, nil

	case EngineBolt:
		db, err := boltdb.Open(conf.Database.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		s := store{Store: boltdb.NewAttainmentRepository(db), close: db.Close}
		return s, s.Close, nil

	case EngineDummy:
		db, err := dummydb.Open()
		if err != nil {
			return nil, nil, err
		}
		s := store{Store: dummydb.NewAttainmentRepository(db)}
		return s, s.Close, nil
	}
	return nil, nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}
