// Package boltdb is an embedded attainment store on bbolt.
//
// Every entity lives in its own bucket as JSON, under keys made of its parent ids first so that
// children are fetched with a prefix scan.
package boltdb

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const keySep = "\x00"

var (
	bktBatches         = []byte("batches")
	bktCourses         = []byte("courses")
	bktBatchCourses    = []byte("batch_courses")
	bktCourseOutcomes  = []byte("course_outcomes")
	bktProgramOutcomes = []byte("program_outcomes")
	bktQuestions       = []byte("questions")
	bktQuestionCO      = []byte("question_co_mappings")
	bktCOPO            = []byte("co_po_mappings")
	bktEnrollments     = []byte("enrollments")
	bktMarks           = []byte("student_marks")
	bktAttainments     = []byte("course_outcome_attainments")

	buckets = [][]byte{
		bktBatches, bktCourses, bktBatchCourses, bktCourseOutcomes, bktProgramOutcomes, bktQuestions,
		bktQuestionCO, bktCOPO, bktEnrollments, bktMarks, bktAttainments,
	}
)

type DB struct {
	db *bbolt.DB
}

// Open opens (or creates) the bolt file at path with all the buckets.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating bolt directory")
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt file %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "creating bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func key(parts ...string) []byte {
	return []byte(strings.Join(parts, keySep))
}

func prefix(parts ...string) []byte {
	return []byte(strings.Join(parts, keySep) + keySep)
}

func put[T any](tx *bbolt.Tx, bucket, k []byte, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", bucket)
	}
	return tx.Bucket(bucket).Put(k, data)
}

// get reports false when the key does not exist.
func get[T any](tx *bbolt.Tx, bucket, k []byte, out *T) (bool, error) {
	data := tx.Bucket(bucket).Get(k)
	if data == nil {
		return false, nil
	}
	return true, errors.Wrapf(json.Unmarshal(data, out), "decoding %s", bucket)
}

// scan decodes every value under the prefix, in key order.
func scan[T any](tx *bbolt.Tx, bucket, p []byte) ([]T, error) {
	res := make([]T, 0)
	c := tx.Bucket(bucket).Cursor()
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", bucket)
		}
		res = append(res, out)
	}
	return res, nil
}
