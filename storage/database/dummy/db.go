package dummydb

import (
	"sync"

	"github.com/trezcool/outcomes/core/attainment"
)

type (
	// DB is an in-memory store for the engine inputs and the persisted attainments.
	DB struct {
		sync.RWMutex
		data        attainment.Dataset
		attainments map[string]attainment.StudentCOAttainment // {key: row}
		writeErr    error
	}
)

func Open() (*DB, error) {
	db := &DB{
		attainments: make(map[string]attainment.StudentCOAttainment),
	}
	return db, nil
}

// Load replaces the engine inputs with the dataset; persisted attainments are kept.
func (db *DB) Load(ds attainment.Dataset) {
	db.Lock()
	defer db.Unlock()
	db.data = ds
}

// Update applies fn to the engine inputs.
func (db *DB) Update(fn func(ds *attainment.Dataset)) {
	db.Lock()
	defer db.Unlock()
	fn(&db.data)
}

// FailWrites makes the following writes fail with err; a nil err restores them.
func (db *DB) FailWrites(err error) {
	db.Lock()
	defer db.Unlock()
	db.writeErr = err
}
