// Package queue hands reclaim work to the asynq worker when Redis is
// configured.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

const (
	// ReclaimTask is enqueued for each upload the sweeper finds expired.
	ReclaimTask = "upload:reclaim"

	reclaimRetries   = 5
	reclaimUniqueTTL = time.Hour
)

var errMissingID = errors.New("reclaim payload has no id")

// ReclaimPayload is the JSON body of a ReclaimTask.
type ReclaimPayload struct {
	ID uploadid.ID `json:"id"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewReclaimTask builds the task for id.
func NewReclaimTask(id uploadid.ID) (*asynq.Task, error) {
	data, err := json.Marshal(ReclaimPayload{ID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ReclaimTask, data), nil
}

// ParseReclaimTask decodes the payload of a ReclaimTask.
func ParseReclaimTask(task *asynq.Task) (uploadid.ID, error) {
	var payload ReclaimPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return uploadid.ID{}, fmt.Errorf("decode payload: %w", err)
	}
	if payload.ID == (uploadid.ID{}) {
		return uploadid.ID{}, errMissingID
	}
	return payload.ID, nil
}

// Reclaimer enqueues reclaim tasks instead of deleting inline. It satisfies
// the sweeper's Reclaimer interface.
type Reclaimer struct {
	client Enqueuer
}

// NewReclaimer wraps client.
func NewReclaimer(client Enqueuer) *Reclaimer {
	return &Reclaimer{client: client}
}

// Reclaim enqueues a ReclaimTask for id. A task already pending for the same
// ID is not an error.
func (r *Reclaimer) Reclaim(ctx context.Context, id uploadid.ID) error {
	task, err := NewReclaimTask(id)
	if err != nil {
		return err
	}
	_, err = r.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(reclaimRetries),
		asynq.Unique(reclaimUniqueTTL),
	)
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("enqueue reclaim task: %w", err)
	}
	return nil
}
