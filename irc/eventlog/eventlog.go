// Package eventlog records controller lifecycle events in a SQL database
// through GORM. Writes happen on a background goroutine so that a slow
// database never holds up a session.
package eventlog

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/presbrey/ircd/irc/server"
)

// DefaultBuffer is the number of records that may wait for the writer
const DefaultBuffer = 1024

// ErrClosed is returned when recording to a closed store
var ErrClosed = errors.New("eventlog: store closed")

// Record is one stored event
type Record struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Kind         string    `gorm:"size:32;index" json:"kind"`
	ConnectionID string    `gorm:"size:8;index" json:"connection_id"`
	Nickname     string    `gorm:"size:64" json:"nickname,omitempty"`
	OldNickname  string    `gorm:"size:64" json:"old_nickname,omitempty"`
	Channel      string    `gorm:"size:64" json:"channel,omitempty"`
	Topic        string    `gorm:"size:512" json:"topic,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName implements gorm's Tabler
func (Record) TableName() string {
	return "irc_events"
}

// Store writes event records asynchronously
type Store struct {
	db      *gorm.DB
	queue   chan Record
	flushes chan chan struct{}
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Dialector returns the GORM dialector for a driver name
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite", "":
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("eventlog: unsupported driver %q", driver)
}

// Open connects to the database and prepares the events table
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	o := options{buffer: DefaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := connect(driver, dialector, o)
	if err != nil {
		return nil, err
	}
	return New(db, o.buffer)
}

// New wraps an open database. The events table is migrated before New
// returns.
func New(db *gorm.DB, buffer int) (*Store, error) {
	if db.Dialector.Name() == "sqlite" {
		// one connection, so every query sees the same in-memory database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventlog: migration failed: %w", err)
	}

	s := &Store{
		db:      db,
		queue:   make(chan Record, buffer),
		flushes: make(chan chan struct{}),
		done:    make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

// NewRecord converts a controller event
func NewRecord(ev server.Event) Record {
	return Record{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Kind:         ev.Kind.String(),
		ConnectionID: ev.ID.String(),
		Nickname:     ev.Nick.String(),
		OldNickname:  ev.OldNick.String(),
		Channel:      ev.Channel.String(),
		Topic:        ev.Topic.String(),
		CreatedAt:    ev.Time,
	}
}

// Record queues ev for writing. It is a server.Subscriber. When the queue
// is full the record is dropped.
func (s *Store) Record(ev server.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	select {
	case s.queue <- NewRecord(ev):
	default:
		log.Printf("eventlog: queue full, dropping %s event for %s", ev.Kind, ev.ID)
	}
	return nil
}

// Subscribe attaches the store to a controller's events
func (s *Store) Subscribe(events *server.Events) {
	events.SubscribeWithPriority("eventlog", s.Record, 100)
}

func (s *Store) writer() {
	defer close(s.done)

	for {
		select {
		case rec, ok := <-s.queue:
			if !ok {
				return
			}
			s.write(rec)
		case reply := <-s.flushes:
			s.drain()
			close(reply)
		}
	}
}

func (s *Store) drain() {
	for {
		select {
		case rec, ok := <-s.queue:
			if !ok {
				return
			}
			s.write(rec)
		default:
			return
		}
	}
}

func (s *Store) write(rec Record) {
	if err := s.db.Create(&rec).Error; err != nil {
		log.Printf("eventlog: failed to write %s event: %v", rec.Kind, err)
	}
}

// Flush waits until every record queued before the call has been written
func (s *Store) Flush() {
	reply := make(chan struct{})
	select {
	case s.flushes <- reply:
		<-reply
	case <-s.done:
	}
}

// Recent returns up to limit records, newest first
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []Record
	err := s.db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("eventlog: query failed: %w", err)
	}
	return records, nil
}

// Close writes what is queued and closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
