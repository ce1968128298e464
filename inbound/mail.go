package inbound

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-noticast/core"
)

const DefaultMailSystem = "mail"

type TargetOutcome string

const (
	OutcomeDispatched TargetOutcome = "dispatched"
	OutcomeNotFound   TargetOutcome = "not_found"
	OutcomeRejected   TargetOutcome = "rejected"
	OutcomeFailed     TargetOutcome = "failed"
)

// TargetResult is the outcome of one identifier extracted from a message.
type TargetResult struct {
	Target   string
	Outcome  TargetOutcome
	Envelope core.DispatchEnvelope
	Err      error
}

type MailResult struct {
	MessageID string
	Subject   string
	Skipped   bool
	Reason    string
	Deduped   bool
	Targets   []TargetResult
}

func (r MailResult) Dispatched() int {
	count := 0
	for _, target := range r.Targets {
		if target.Outcome == OutcomeDispatched {
			count++
		}
	}
	return count
}

// MailHandler runs the asynchronous mail path. It never returns an error:
// unknown targets are logged, everything else goes to telemetry.
type MailHandler struct {
	Dispatcher core.Dispatcher
	Telemetry  core.TelemetryReporter
	Claims     ClaimStore
	Logger     core.Logger
	Domain     string
	System     string
	Stage      string
	ClaimTTL   time.Duration
}

func NewMailHandler(dispatcher core.Dispatcher, cfg core.Config, opts ...MailOption) *MailHandler {
	handler := &MailHandler{
		Dispatcher: dispatcher,
		Telemetry:  core.NopTelemetryReporter{},
		Logger:     glog.Nop(),
		Domain:     cfg.Mail.Domain,
		System:     cfg.Mail.System,
		Stage:      cfg.Stage,
		ClaimTTL:   defaultClaimTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

type MailOption func(*MailHandler)

func WithMailTelemetry(reporter core.TelemetryReporter) MailOption {
	return func(h *MailHandler) {
		if reporter != nil {
			h.Telemetry = reporter
		}
	}
}

func WithMailClaims(store ClaimStore, ttl time.Duration) MailOption {
	return func(h *MailHandler) {
		h.Claims = store
		if ttl > 0 {
			h.ClaimTTL = ttl
		}
	}
}

func WithMailLogger(logger core.Logger) MailOption {
	return func(h *MailHandler) {
		h.Logger = glog.Ensure(logger)
	}
}

func (h *MailHandler) HandleEvent(ctx context.Context, event MailEvent) []MailResult {
	results := make([]MailResult, 0, len(event.Messages))
	for _, message := range event.Messages {
		results = append(results, h.Handle(ctx, message))
	}
	return results
}

func (h *MailHandler) Handle(ctx context.Context, message MailMessage) MailResult {
	result := MailResult{
		MessageID: strings.TrimSpace(message.MessageID),
		Subject:   message.Subject,
	}
	if IsReplyChain(message.Subject) {
		result.Skipped = true
		result.Reason = "reply_chain"
		h.logger(ctx).Info("mail skipped: reply chain", "message_id", result.MessageID, "subject", message.Subject)
		return result
	}
	text := NormalizeSubject(message.Subject)
	result.Subject = text

	targets := ExtractTargets(message.To, message.Cc, h.Domain)
	if len(targets) == 0 {
		result.Skipped = true
		result.Reason = "no_targets"
		h.logger(ctx).Info("mail skipped: no targets", "message_id", result.MessageID, "domain", h.Domain)
		return result
	}

	claimID, proceed := h.claim(ctx, result.MessageID)
	if !proceed {
		result.Skipped = true
		result.Deduped = true
		result.Reason = "duplicate"
		return result
	}

	for _, target := range targets {
		result.Targets = append(result.Targets, h.dispatchTarget(ctx, target, text))
	}

	if claimID != "" {
		if err := h.Claims.Complete(ctx, claimID); err != nil {
			h.logger(ctx).Warn("mail claim complete failed", "message_id", result.MessageID, "error", err)
		}
	}
	return result
}

func (h *MailHandler) dispatchTarget(ctx context.Context, target string, text string) TargetResult {
	result := TargetResult{Target: target}
	if h.Dispatcher == nil {
		result.Outcome = OutcomeFailed
		result.Err = inboundInternal("inbound: mail dispatcher is not configured", nil)
		h.report(ctx, target, text, result.Err)
		return result
	}
	envelope, err := h.Dispatcher.Dispatch(ctx, core.DispatchRequest{
		Target:  target,
		Message: text,
		Stage:   h.Stage,
	})
	switch {
	case err == nil:
		result.Outcome = OutcomeDispatched
		result.Envelope = envelope
	case core.IsTargetNotFound(err):
		result.Outcome = OutcomeNotFound
		result.Err = err
		h.logger(ctx).Info("mail target not found", "target", target)
	case core.IsValidationError(err):
		result.Outcome = OutcomeRejected
		result.Err = err
		h.logger(ctx).Warn("mail target rejected", "target", target, "error", err)
	default:
		result.Outcome = OutcomeFailed
		result.Err = err
		h.report(ctx, target, text, err)
	}
	return result
}

func (h *MailHandler) claim(ctx context.Context, messageID string) (string, bool) {
	if h.Claims == nil || messageID == "" {
		return "", true
	}
	claimID, accepted, err := h.Claims.Claim(ctx, "mail:"+messageID, h.ClaimTTL)
	if err != nil {
		h.logger(ctx).Warn("mail claim failed, processing without dedupe", "message_id", messageID, "error", err)
		return "", true
	}
	if !accepted {
		h.logger(ctx).Info("mail skipped: duplicate delivery", "message_id", messageID)
	}
	return claimID, accepted
}

func (h *MailHandler) report(ctx context.Context, target string, text string, err error) {
	system := strings.TrimSpace(h.System)
	if system == "" {
		system = DefaultMailSystem
	}
	h.logger(ctx).Error("mail dispatch failed", "target", target, "error", err)
	if h.Telemetry == nil {
		return
	}
	h.Telemetry.Report(ctx, core.TelemetryReport{
		Err: err,
		Tags: map[string]string{
			"system":  system,
			"target":  target,
			"message": text,
		},
	})
}

func (h *MailHandler) logger(ctx context.Context) core.Logger {
	logger := glog.Ensure(h.Logger)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}
