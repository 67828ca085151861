// Package sweeper reclaims the storage of expired uploads. It rebuilds the
// expiry queue from a storage listing at start up and then periodically pops
// everything that is due.
package sweeper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/expiry"
	"github.com/dharsanguruparan/expiredrop/internal/storage"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// DefaultInterval is used when Options.Interval is not set.
const DefaultInterval = 5 * time.Minute

// Reclaimer frees whatever backs an expired upload.
type Reclaimer interface {
	Reclaim(ctx context.Context, id uploadid.ID) error
}

// ReclaimFunc adapts a function to Reclaimer.
type ReclaimFunc func(ctx context.Context, id uploadid.ID) error

// Reclaim implements Reclaimer.
func (f ReclaimFunc) Reclaim(ctx context.Context, id uploadid.ID) error { return f(ctx, id) }

// Options tune a Sweeper.
type Options struct {
	Interval time.Duration
	// Workers bounds how many reclaims of one sweep run at once.
	Workers int
	Logger  *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Sweeper drains a Queue on a fixed interval.
type Sweeper struct {
	queue     *expiry.Queue
	reclaimer Reclaimer
	interval  time.Duration
	workers   int
	log       *zap.Logger
	now       func() time.Time
}

// New builds a Sweeper.
func New(queue *expiry.Queue, reclaimer Reclaimer, opts Options) *Sweeper {
	s := &Sweeper{
		queue:     queue,
		reclaimer: reclaimer,
		interval:  opts.Interval,
		workers:   opts.Workers,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.SweepOnce(ctx, s.now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce reclaims every upload that has expired at now and returns their
// IDs. Failed reclaims are logged; the IDs are not queued again.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) []uploadid.ID {
	expired := s.queue.PopExpired(uploadid.Unix(now))
	if len(expired) == 0 {
		return nil
	}
	s.log.Info("reclaiming expired uploads", zap.Int("count", len(expired)), zap.Int("remaining", s.queue.Len()))

	jobs := make(chan uploadid.ID)
	var wg sync.WaitGroup
	for i := 0; i < min(s.workers, len(expired)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := s.reclaimer.Reclaim(ctx, id); err != nil {
					s.log.Warn("reclaim failed", zap.Stringer("id", id), zap.Error(err))
					continue
				}
				s.log.Debug("reclaimed", zap.Stringer("id", id), zap.Time("expired", id.ExpiresAt()))
			}
		}()
	}
	for _, id := range expired {
		jobs <- id
	}
	close(jobs)
	wg.Wait()
	return expired
}

// Restore lists store and pushes every entry that parses as an upload ID
// onto queue. Entries that are not IDs are skipped. It returns the number of
// IDs pushed.
func Restore(ctx context.Context, store storage.Store, queue *expiry.Queue) (int, error) {
	names, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	ids := make([]uploadid.ID, 0, len(names))
	for _, name := range names {
		id, err := uploadid.Parse(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	queue.PushAll(ids...)
	return len(ids), nil
}
