// Package history is an optional audit log of every request/response pair
// a run produces, backed by SQLite via GORM.
package history

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

// Run records one interpreter invocation.
type Run struct {
	ID        uint `gorm:"primarykey"`
	Label     string
	StartedAt time.Time
}

// ResponseRecord records one materialized response produced during a Run.
type ResponseRecord struct {
	ID        uint `gorm:"primarykey"`
	RunID     uint `gorm:"index"`
	Method    string
	URL       string
	Status    int
	Reason    string
	BodySize  int
	CreatedAt time.Time
}

// Store persists Runs and ResponseRecords to a SQLite file.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Run{}, &ResponseRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// BeginRun inserts a new Run row labeled label.
func (s *Store) BeginRun(label string) (*Run, error) {
	run := &Run{Label: label, StartedAt: time.Now()}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// Sink returns an httpclient.HistorySink bound to run, suitable for
// httpclient.WithHistorySink.
func (s *Store) Sink(run *Run) httpclient.HistorySink {
	return &runSink{store: s, run: run}
}

type runSink struct {
	store *Store
	run   *Run
}

// RecordResponse implements httpclient.HistorySink.
func (r *runSink) RecordResponse(resp *httpclient.Response) error {
	if resp == nil {
		return nil
	}
	rec := &ResponseRecord{
		RunID:     r.run.ID,
		Method:    string(resp.Request().Method),
		URL:       resp.URL().String(),
		Status:    resp.Status(),
		Reason:    resp.Reason(),
		BodySize:  len(resp.Content()),
		CreatedAt: time.Now(),
	}
	return r.store.db.Create(rec).Error
}

// Responses returns every ResponseRecord belonging to run, oldest first.
func (s *Store) Responses(run *Run) ([]ResponseRecord, error) {
	var out []ResponseRecord
	err := s.db.Where("run_id = ?", run.ID).Order("created_at asc").Find(&out).Error
	return out, err
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
