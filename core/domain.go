package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoAudioProduced     = errors.New("core: no audio produced")
	ErrInvalidMatchPolicy  = errors.New("core: invalid match policy")
	ErrInvalidTextType     = errors.New("core: invalid text type")
	ErrDirectoryNotDefined = errors.New("core: endpoint directory is required")
	ErrSynthesizerNotSet   = errors.New("core: speech synthesizer is required")
	ErrAssetStoreNotSet    = errors.New("core: asset store is required")
	ErrBusNotSet           = errors.New("core: notification bus is required")
)

type MatchPolicy string

const (
	MatchPolicyExact  MatchPolicy = "exact"
	MatchPolicySuffix MatchPolicy = "suffix"
)

func ParseMatchPolicy(value string) (MatchPolicy, error) {
	switch MatchPolicy(strings.TrimSpace(strings.ToLower(value))) {
	case "", MatchPolicyExact:
		return MatchPolicyExact, nil
	case MatchPolicySuffix:
		return MatchPolicySuffix, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMatchPolicy, value)
	}
}

// Matches reports whether a stored identifier satisfies the policy for the
// requested identifier.
func (p MatchPolicy) Matches(stored string, requested string) bool {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return false
	}
	if p == MatchPolicySuffix {
		return strings.HasSuffix(stored, requested)
	}
	return stored == requested
}

type TextType string

const (
	TextTypePlain TextType = "text"
	TextTypeSSML  TextType = "ssml"
)

func (t TextType) Valid() bool {
	switch t {
	case TextTypePlain, TextTypeSSML:
		return true
	default:
		return false
	}
}

// QoS is the delivery tier requested from the publish transport.
type QoS byte

const (
	QoSAtMostOnce  QoS = 0
	QoSAtLeastOnce QoS = 1
)

type Device struct {
	ARN      string
	GroupARN string
}

type Group struct {
	ARN     string
	Devices []Device
}

// ResolvedTarget is never persisted; it lives for a single dispatch.
type ResolvedTarget struct {
	Devices []Device
	IsGroup bool
}

func (t ResolvedTarget) DeviceARNs() []string {
	out := make([]string, 0, len(t.Devices))
	for _, device := range t.Devices {
		out = append(out, device.ARN)
	}
	return out
}

type DispatchRequest struct {
	Target   string `json:"target"`
	Message  string `json:"message"`
	TextType string `json:"message_type,omitempty"`
	VoiceID  string `json:"voice_id,omitempty"`
	Testing  bool   `json:"testing,omitempty"`
	Stage    string `json:"stage,omitempty"`
}

type DispatchEnvelope struct {
	Message   string   `json:"message"`
	URI       string   `json:"uri"`
	Devices   []string `json:"devices"`
	IsGroup   bool     `json:"is_group"`
	Published bool     `json:"published"`
}

// NotificationPayload is the body published to every channel.
type NotificationPayload struct {
	Message   string `json:"message"`
	URI       string `json:"uri"`
	Published bool   `json:"published"`
}

func (e DispatchEnvelope) Payload() NotificationPayload {
	return NotificationPayload{
		Message:   e.Message,
		URI:       e.URI,
		Published: e.Published,
	}
}

type SpeechRequest struct {
	Text         string
	TextType     TextType
	VoiceID      string
	OutputFormat string
}

type SpeechResult struct {
	Audio       []byte
	ContentType string
}

type PublishStatus string

const (
	PublishStatusSent   PublishStatus = "sent"
	PublishStatusFailed PublishStatus = "failed"
)

type PublishAttempt struct {
	DispatchID string
	Channel    string
	Broadcast  bool
	Status     PublishStatus
	Error      string
}

type TelemetryReport struct {
	Err   error
	Tags  map[string]string
	Extra map[string]any
}
