package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/storage"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// Recorder is told about uploads whose storage has been reclaimed.
type Recorder interface {
	MarkReclaimed(ctx context.Context, id uploadid.ID, at time.Time) error
}

// StoreReclaimer deletes the upload from storage directly.
type StoreReclaimer struct {
	Store storage.Store
	// Recorder is optional.
	Recorder Recorder
	Logger   *zap.Logger
}

// Reclaim implements Reclaimer. A failing Recorder is logged but does not
// fail the reclaim, the storage is already gone at that point.
func (r *StoreReclaimer) Reclaim(ctx context.Context, id uploadid.ID) error {
	if err := r.Store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove upload %s: %w", id, err)
	}
	if r.Recorder == nil {
		return nil
	}
	if err := r.Recorder.MarkReclaimed(ctx, id, time.Now()); err != nil && r.Logger != nil {
		r.Logger.Warn("record reclaim failed", zap.Stringer("id", id), zap.Error(err))
	}
	return nil
}
