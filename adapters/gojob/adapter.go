package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-noticast/core"
	"github.com/goliatone/go-noticast/inbound"
)

const (
	JobIDProcessMail      = "noticast.mail.process"
	ScriptPathProcessMail = "noticast/mail/process"

	paramMessageID = "message_id"
	paramSubject   = "subject"
	paramTo        = "to"
	paramCc        = "cc"
)

const defaultPollInterval = time.Second

// RetryPolicy bounds nack retries so a poisoned message cannot loop forever.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// EncodeMailJob maps one mail message to a go-job execution message. The
// idempotency key is derived from the message id when one is present.
func EncodeMailJob(message inbound.MailMessage) *job.ExecutionMessage {
	msg := &job.ExecutionMessage{
		JobID:      JobIDProcessMail,
		ScriptPath: ScriptPathProcessMail,
		Parameters: map[string]any{
			paramMessageID: strings.TrimSpace(message.MessageID),
			paramSubject:   message.Subject,
			paramTo:        append([]string(nil), message.To...),
			paramCc:        append([]string(nil), message.Cc...),
		},
	}
	if id := strings.TrimSpace(message.MessageID); id != "" {
		msg.IdempotencyKey = "mail:" + id
		msg.DedupPolicy = job.DeduplicationPolicy("drop")
	}
	return msg
}

// DecodeMailJob reverses EncodeMailJob. Address lists may arrive as []string
// or, after a JSON round trip through a queue backend, as []any.
func DecodeMailJob(msg *job.ExecutionMessage) (inbound.MailMessage, error) {
	if msg == nil {
		return inbound.MailMessage{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDProcessMail {
		return inbound.MailMessage{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	to, err := stringList(msg.Parameters[paramTo])
	if err != nil {
		return inbound.MailMessage{}, fmt.Errorf("gojob: decode %s: %w", paramTo, err)
	}
	cc, err := stringList(msg.Parameters[paramCc])
	if err != nil {
		return inbound.MailMessage{}, fmt.Errorf("gojob: decode %s: %w", paramCc, err)
	}
	messageID, _ := msg.Parameters[paramMessageID].(string)
	subject, _ := msg.Parameters[paramSubject].(string)
	return inbound.MailMessage{
		MessageID: messageID,
		Subject:   subject,
		To:        to,
		Cc:        cc,
	}, nil
}

func stringList(value any) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), typed...), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected item type %T", item)
			}
			out = append(out, text)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", value)
	}
}

// MailEnqueuer defers mail processing to a go-job queue.
type MailEnqueuer struct {
	enqueuer queue.Enqueuer
}

func NewMailEnqueuer(enqueuer queue.Enqueuer) *MailEnqueuer {
	return &MailEnqueuer{enqueuer: enqueuer}
}

func (e *MailEnqueuer) EnqueueMail(ctx context.Context, message inbound.MailMessage) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return e.enqueuer.Enqueue(ctx, EncodeMailJob(message))
}

// EnqueueEvent queues each message of the event as its own job.
func (e *MailEnqueuer) EnqueueEvent(ctx context.Context, event inbound.MailEvent) error {
	for _, message := range event.Messages {
		if err := e.EnqueueMail(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

type MailProcessor interface {
	Handle(ctx context.Context, message inbound.MailMessage) inbound.MailResult
}

// MailWorker drains queued mail jobs one at a time. Per target failures are
// reported by the mail handler, so a decoded job is always acked; only jobs
// that cannot be decoded are dead-lettered.
type MailWorker struct {
	dequeuer     queue.Dequeuer
	processor    MailProcessor
	policy       RetryPolicy
	hook         worker.Hook
	logger       core.Logger
	pollInterval time.Duration
	now          func() time.Time
}

type WorkerOption func(*MailWorker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *MailWorker) {
		w.policy = policy
	}
}

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *MailWorker) {
		w.hook = hook
	}
}

func WithLogger(logger core.Logger) WorkerOption {
	return func(w *MailWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *MailWorker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

func NewMailWorker(dequeuer queue.Dequeuer, processor MailProcessor, opts ...WorkerOption) *MailWorker {
	w := &MailWorker{
		dequeuer:     dequeuer,
		processor:    processor,
		logger:       glog.Nop(),
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// ProcessNext handles a single delivery. It reports false when the queue had
// nothing to deliver.
func (w *MailWorker) ProcessNext(ctx context.Context) (bool, error) {
	if w == nil || w.dequeuer == nil || w.processor == nil {
		return false, fmt.Errorf("gojob: mail worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	startedAt := w.now().UTC()
	event := worker.Event{Message: delivery.Message(), Delivery: delivery, Attempt: 1, StartedAt: startedAt}
	w.onStart(ctx, event)

	message, err := DecodeMailJob(delivery.Message())
	if err != nil {
		event.Err = err
		event.Duration = time.Since(startedAt)
		w.onFailure(ctx, event)
		w.logger.Warn("mail job dropped", "error", err)
		nack := w.policy.NormalizeAttempt(queue.NackOptions{DeadLetter: true, Reason: err.Error()}, event.Attempt)
		return true, delivery.Nack(ctx, nack)
	}

	result := w.processor.Handle(ctx, message)
	event.Duration = time.Since(startedAt)
	w.logger.Info("mail job processed",
		"message_id", result.MessageID,
		"skipped", result.Skipped,
		"reason", result.Reason,
		"dispatched", result.Dispatched(),
	)
	if err := delivery.Ack(ctx); err != nil {
		event.Err = err
		w.onFailure(ctx, event)
		return true, err
	}
	w.onSuccess(ctx, event)
	return true, nil
}

// Run processes jobs until ctx is done.
func (w *MailWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("mail worker iteration failed", "error", err)
		}
		if processed && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *MailWorker) onStart(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *MailWorker) onSuccess(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *MailWorker) onFailure(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

// LoggingHook writes worker lifecycle events to a glog logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.logger.Debug("mail job started", eventArgs(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.logger.Debug("mail job succeeded", eventArgs(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.logger.Warn("mail job failed", eventArgs(event)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.logger.Info("mail job retried", eventArgs(event)...)
}

func eventArgs(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	args := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if message != nil {
		args = append(args, "job_id", message.JobID, "idempotency_key", message.IdempotencyKey)
	}
	if event.Err != nil {
		args = append(args, "error", event.Err)
	}
	return args
}

var (
	_ worker.Hook   = (*LoggingHook)(nil)
	_ MailProcessor = (*inbound.MailHandler)(nil)
)
