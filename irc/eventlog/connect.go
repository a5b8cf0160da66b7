package eventlog

import (
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Option configures Open
type Option func(*options)

type options struct {
	debug   bool
	buffer  int
	retries int
	backoff backoff
}

// WithDebug logs every SQL statement
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// WithBuffer sets how many records may wait for the writer
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithRetries retries a failed connection up to n more times, backing off
// exponentially from initial
func WithRetries(n int, initial time.Duration) Option {
	return func(o *options) {
		o.retries = n
		o.backoff = backoff{initial: initial, multiplier: 2, max: 5 * time.Second}
	}
}

// backoff computes the wait before each retry
type backoff struct {
	initial    time.Duration
	multiplier float64
	max        time.Duration
}

func (b backoff) delay(attempt int) time.Duration {
	d := time.Duration(float64(b.initial) * math.Pow(b.multiplier, float64(attempt)))
	if b.max > 0 && d > b.max {
		d = b.max
	}
	return d
}

// connect opens the database, retrying while the server is unreachable
func connect(driver string, dialector gorm.Dialector, o options) (*gorm.DB, error) {
	level := logger.Silent
	if o.debug {
		level = logger.Info
	}
	config := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			wait := o.backoff.delay(attempt - 1)
			log.Printf("eventlog: %s connection failed (%v), retrying in %s", driver, lastErr, wait)
			time.Sleep(wait)
		}

		db, err := gorm.Open(dialector, config)
		if err == nil {
			return db, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("eventlog: failed to open %s database: %w", driver, lastErr)
}
