package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hms/hospital-auth/internal/core/domain"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// Writer persists the credential updates that are kept off the request path.
type Writer interface {
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	ReplacePasswordHash(ctx context.Context, userID, current, next string) error
}

// Observer is told about every write outcome. Optional.
type Observer interface {
	LastLoginWritten(err error)
	LastLoginDropped()
}

type job struct {
	userID string
	at     time.Time
	rehash *rehashJob
}

type rehashJob struct {
	current string
	hash    func() (string, error)
}

// Dispatcher writes last_login timestamps and upgraded password hashes off
// the request path. Jobs are sharded by user id, so writes for one user are
// applied in order.
type Dispatcher struct {
	workers  []chan job
	writer   Writer
	observer Observer
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, writer Writer, observer Observer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan job, numWorkers),
		writer:   writer,
		observer: observer,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their queue and stop
// when ctx is cancelled; Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// RecordLastLogin queues a write. It never blocks: when the worker's buffer
// is full the update is dropped and logged.
func (d *Dispatcher) RecordLastLogin(userID string, at time.Time) {
	select {
	case d.workers[d.shardIndex(userID)] <- job{userID: userID, at: at}:
	default:
		d.log.Warn().Str("user_id", userID).Msg("last login queue full, update dropped")
		if d.observer != nil {
			d.observer.LastLoginDropped()
		}
	}
}

// UpgradePasswordHash queues a rehash. hash runs on the worker, and its result
// is stored only if the user's hash is still current. A full queue drops the
// upgrade; the next login retries it.
func (d *Dispatcher) UpgradePasswordHash(userID, current string, hash func() (string, error)) {
	select {
	case d.workers[d.shardIndex(userID)] <- job{userID: userID, rehash: &rehashJob{current: current, hash: hash}}:
	default:
		d.log.Warn().Str("user_id", userID).Msg("queue full, password rehash dropped")
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan job) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case j := <-ch:
			d.write(ctx, id, j)
		}
	}
}

// drain flushes whatever is already queued using a fresh context.
func (d *Dispatcher) drain(id int, ch <-chan job) {
	for {
		select {
		case j := <-ch:
			d.write(context.Background(), id, j)
		default:
			return
		}
	}
}

func (d *Dispatcher) write(ctx context.Context, id int, j job) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if j.rehash != nil {
		d.rehash(ctx, id, j)
		return
	}

	err := d.writer.UpdateLastLogin(ctx, j.userID, j.at)
	if err != nil {
		d.log.Error().Err(err).
			Str("user_id", j.userID).
			Int("worker_id", id).
			Msg("last login update failed")
	}
	if d.observer != nil {
		d.observer.LastLoginWritten(err)
	}
}

func (d *Dispatcher) rehash(ctx context.Context, id int, j job) {
	next, err := j.rehash.hash()
	if err != nil {
		d.log.Error().Err(err).Str("user_id", j.userID).Int("worker_id", id).Msg("password rehash failed")
		return
	}
	err = d.writer.ReplacePasswordHash(ctx, j.userID, j.rehash.current, next)
	switch {
	case err == nil:
		d.log.Info().Str("user_id", j.userID).Msg("password hash upgraded")
	case errors.Is(err, domain.ErrUserNotFound):
		// Password changed or user removed since the login; nothing to upgrade.
		d.log.Debug().Str("user_id", j.userID).Msg("password rehash skipped")
	default:
		d.log.Error().Err(err).Str("user_id", j.userID).Int("worker_id", id).Msg("password hash update failed")
	}
}
