package notify

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/mbolis/cerimonial/log"
)

// Dispatcher hands an event to whatever delivers notifications. Callers do
// not wait for delivery.
type Dispatcher interface {
	Notify(ctx context.Context, event string, payload any) error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type QueueDispatcher struct {
	client enqueuer
	closer func() error
}

func NewQueueDispatcher(redisAddr string) *QueueDispatcher {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &QueueDispatcher{client: client, closer: client.Close}
}

func (d *QueueDispatcher) Notify(ctx context.Context, event string, payload any) error {
	task, err := NewTask(event, payload)
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.MaxRetry(3)}
	if id := TaskID(event, payload); id != "" {
		opts = append(opts, asynq.TaskID(id))
	}

	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Debugf("notify.enqueue: %s already queued", event)
		return nil
	}
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"event": event, "task": info.ID, "queue": info.Queue}).Debug("notify.enqueue")
	return nil
}

func (d *QueueDispatcher) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

// LogDispatcher only logs events. It stands in when Redis is not configured.
type LogDispatcher struct{}

func (LogDispatcher) Notify(_ context.Context, event string, payload any) error {
	log.WithFields(log.Fields{"event": event, "payload": payload}).Info("notify.log")
	return nil
}
