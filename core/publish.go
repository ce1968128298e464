package core

import (
	"context"
	"encoding/json"
	"strings"
)

// FanOutReport lists the channels a dispatch reached and the ones that
// rejected the publish.
type FanOutReport struct {
	Sent   []string
	Failed map[string]error
}

// PublishAllowed reports whether fan-out runs. Publishing is suppressed only
// when the stage is a non-production stage and the caller opted in.
func PublishAllowed(testingStages []string, stage string, testing bool) bool {
	if !testing {
		return true
	}
	stage = strings.TrimSpace(strings.ToLower(stage))
	if stage == "" {
		return true
	}
	for _, candidate := range testingStages {
		if strings.TrimSpace(strings.ToLower(candidate)) == stage {
			return false
		}
	}
	return true
}

func (s *Service) publishAllowed(stage string, testing bool) bool {
	return PublishAllowed(s.config.Publish.TestingStages, stage, testing)
}

// fanOut publishes to the broadcast channel and then to every device channel
// in resolved order. Device failures never stop the remaining publishes.
func (s *Service) fanOut(ctx context.Context, dispatchID string, envelope DispatchEnvelope) (FanOutReport, error) {
	report := FanOutReport{Failed: map[string]error{}}
	payload, err := json.Marshal(envelope.Payload())
	if err != nil {
		return report, newInternalError("core: encode notification payload failed").WithMetadata(map[string]any{
			"dispatch_id": dispatchID,
			"cause":       err.Error(),
		})
	}

	broadcast := strings.TrimSpace(s.config.Publish.BroadcastChannel)
	if broadcast == "" {
		broadcast = DefaultBroadcastChannel
	}
	if err := s.bus.Publish(ctx, broadcast, payload, QoSAtLeastOnce); err != nil {
		s.recordAttempt(ctx, PublishAttempt{
			DispatchID: dispatchID,
			Channel:    broadcast,
			Broadcast:  true,
			Status:     PublishStatusFailed,
			Error:      err.Error(),
		})
		report.Failed[broadcast] = err
		return report, NewExternalError(err, "core: broadcast publish failed", map[string]any{
			"channel":     broadcast,
			"dispatch_id": dispatchID,
		})
	}
	report.Sent = append(report.Sent, broadcast)
	s.recordAttempt(ctx, PublishAttempt{
		DispatchID: dispatchID,
		Channel:    broadcast,
		Broadcast:  true,
		Status:     PublishStatusSent,
	})

	for _, channel := range envelope.Devices {
		if err := s.bus.Publish(ctx, channel, payload, QoSAtLeastOnce); err != nil {
			report.Failed[channel] = err
			s.logWithLevel(ctx, "error", "device publish failed", map[string]any{
				"channel":     channel,
				"dispatch_id": dispatchID,
				"error":       err.Error(),
			})
			s.recordAttempt(ctx, PublishAttempt{
				DispatchID: dispatchID,
				Channel:    channel,
				Status:     PublishStatusFailed,
				Error:      err.Error(),
			})
			continue
		}
		report.Sent = append(report.Sent, channel)
		s.recordAttempt(ctx, PublishAttempt{
			DispatchID: dispatchID,
			Channel:    channel,
			Status:     PublishStatusSent,
		})
	}
	return report, nil
}

func (s *Service) recordAttempt(ctx context.Context, attempt PublishAttempt) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.RecordAttempt(ctx, attempt); err != nil {
		s.logWithLevel(ctx, "warn", "dispatch ledger write failed", map[string]any{
			"channel":     attempt.Channel,
			"dispatch_id": attempt.DispatchID,
			"error":       err.Error(),
		})
	}
}
