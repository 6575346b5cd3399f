package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"coach-service/pkg/sl"
)

const TypeNotificationSend = "notification:send"

// Queue is a Notifier that enqueues messages for a Worker to deliver.
type Queue struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

func NewQueue(opt asynq.RedisConnOpt, maxRetry int, timeout time.Duration) *Queue {
	return &Queue{
		client:   asynq.NewClient(opt),
		maxRetry: maxRetry,
		timeout:  timeout,
	}
}

func NewTask(msg Message) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeNotificationSend, payload), nil
}

func (q *Queue) Notify(ctx context.Context, msg Message) error {
	const op = "notify.Queue.Notify"

	task, err := NewTask(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := q.client.EnqueueContext(ctx, task, asynq.MaxRetry(q.maxRetry), asynq.Timeout(q.timeout)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Worker consumes queued notifications and hands them to a Notifier.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewWorker(opt asynq.RedisConnOpt, log *slog.Logger, n Notifier, concurrency int) *Worker {
	log = log.With(slog.String("component", "notify/worker"))

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
		Logger: asynqLogger{log: log},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotificationSend, HandleSend(log, n))

	return &Worker{srv: srv, mux: mux}
}

func (w *Worker) Start() error {
	return w.srv.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

// HandleSend decodes a queued Message and delivers it. Undecodable payloads
// are dropped without retry.
func HandleSend(log *slog.Logger, n Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		const op = "notify.HandleSend"

		var msg Message
		if err := json.Unmarshal(task.Payload(), &msg); err != nil {
			log.Error("invalid notification payload", sl.Err(err))
			return fmt.Errorf("%s: %v: %w", op, err, asynq.SkipRetry)
		}

		if err := n.Notify(ctx, msg); err != nil {
			log.Warn("failed to deliver notification",
				slog.String("recipient", msg.Recipient),
				slog.String("kind", string(msg.Kind)),
				sl.Err(err),
			)
			return fmt.Errorf("%s: %w", op, err)
		}

		return nil
	}
}

type asynqLogger struct {
	log *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) {
	l.log.Error(fmt.Sprint(args...))
	os.Exit(1)
}
