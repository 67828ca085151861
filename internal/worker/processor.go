// Package worker runs reclaim tasks taken off the asynq queue.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/queue"
	"github.com/dharsanguruparan/expiredrop/internal/sweeper"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	reclaimer sweeper.Reclaimer
	log       *zap.Logger
	now       func() time.Time
}

// NewProcessor constructs a worker processor. Tasks are executed by
// reclaimer, normally a *sweeper.StoreReclaimer.
func NewProcessor(reclaimer sweeper.Reclaimer, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{reclaimer: reclaimer, log: log, now: time.Now}
}

// Handler registers the reclaim task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ReclaimTask, p.handleReclaim)
	return mux
}

func (p *Processor) handleReclaim(ctx context.Context, task *asynq.Task) error {
	id, err := queue.ParseReclaimTask(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	// a live upload is never deleted, whoever enqueued it
	if !id.Expired(uploadid.Unix(p.now())) {
		p.log.Warn("refusing to reclaim live upload", zap.Stringer("id", id), zap.Time("expires", id.ExpiresAt()))
		return fmt.Errorf("%w: upload %s has not expired", asynq.SkipRetry, id)
	}
	if err := p.reclaimer.Reclaim(ctx, id); err != nil {
		p.log.Warn("reclaim failed", zap.Stringer("id", id), zap.Error(err))
		return err
	}
	p.log.Info("upload reclaimed", zap.Stringer("id", id))
	return nil
}
