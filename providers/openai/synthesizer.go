package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-noticast/core"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/audio/speech"
	DefaultModel    = "tts-1"
	DefaultVoice    = "alloy"
)

const defaultClientTimeout = 90 * time.Second
const defaultAudioBodyLimit int64 = 25 << 20 // 25 MiB

var ssmlTagPattern = regexp.MustCompile(`<[^>]*>`)

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"opus": "audio/ogg",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"wav":  "audio/wav",
	"pcm":  "audio/L16",
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Synthesizer calls the OpenAI speech endpoint and returns the raw audio.
type Synthesizer struct {
	Client        HTTPDoer
	APIKey        string
	Endpoint      string
	Model         string
	Speed         float64
	DefaultVoice  string
	Voices        map[string]string
	MaxAudioBytes int64
}

type Option func(*Synthesizer)

func WithHTTPClient(client HTTPDoer) Option {
	return func(s *Synthesizer) {
		if client != nil {
			s.Client = client
		}
	}
}

func WithEndpoint(endpoint string) Option {
	return func(s *Synthesizer) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			s.Endpoint = trimmed
		}
	}
}

func WithModel(model string) Option {
	return func(s *Synthesizer) {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			s.Model = trimmed
		}
	}
}

func WithSpeed(speed float64) Option {
	return func(s *Synthesizer) {
		if speed > 0 {
			s.Speed = speed
		}
	}
}

// WithVoiceMap translates caller voice ids into OpenAI voices. Ids without an
// entry are sent lowercased.
func WithVoiceMap(voices map[string]string) Option {
	return func(s *Synthesizer) {
		for key, value := range voices {
			s.Voices[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}
}

func NewSynthesizer(apiKey string, opts ...Option) (*Synthesizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, synthError(
			"openai: api key is required",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	s := &Synthesizer{
		Client:        &http.Client{Timeout: defaultClientTimeout},
		APIKey:        apiKey,
		Endpoint:      DefaultEndpoint,
		Model:         DefaultModel,
		Speed:         1,
		DefaultVoice:  DefaultVoice,
		Voices:        map[string]string{"salli": "nova", "joanna": "shimmer", "matthew": "onyx"},
		MaxAudioBytes: defaultAudioBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

type speechPayload struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// Synthesize returns core.ErrNoAudioProduced when the endpoint answers with
// an empty body.
func (s *Synthesizer) Synthesize(ctx context.Context, req core.SpeechRequest) (core.SpeechResult, error) {
	if s == nil || s.Client == nil {
		return core.SpeechResult{}, synthError(
			"openai: synthesizer requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	input := speechInput(req.Text, req.TextType)
	if input == "" {
		return core.SpeechResult{}, core.ErrNoAudioProduced
	}
	format := strings.ToLower(strings.TrimSpace(req.OutputFormat))
	if format == "" {
		format = core.DefaultOutputFormat
	}

	body, err := json.Marshal(speechPayload{
		Model:          s.Model,
		Input:          input,
		Voice:          s.voiceFor(req.VoiceID),
		Speed:          s.Speed,
		ResponseFormat: format,
	})
	if err != nil {
		return core.SpeechResult{}, synthWrapError(err, goerrors.CategoryInternal, "openai: encode speech request", http.StatusInternalServerError, nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return core.SpeechResult{}, synthWrapError(
			err,
			goerrors.CategoryInternal,
			"openai: create http request",
			http.StatusInternalServerError,
			map[string]any{"endpoint": s.Endpoint},
		)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.APIKey)

	httpRes, err := s.Client.Do(httpReq)
	if err != nil {
		return core.SpeechResult{}, synthWrapError(
			err,
			goerrors.CategoryExternal,
			"openai: execute speech request",
			http.StatusBadGateway,
			map[string]any{"endpoint": s.Endpoint},
		)
	}
	defer httpRes.Body.Close()

	limit := s.MaxAudioBytes
	if limit <= 0 {
		limit = defaultAudioBodyLimit
	}
	audio, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return core.SpeechResult{}, synthWrapError(
			err,
			goerrors.CategoryExternal,
			"openai: read speech response",
			http.StatusBadGateway,
			map[string]any{"status_code": httpRes.StatusCode},
		)
	}
	if httpRes.StatusCode < 200 || httpRes.StatusCode >= 300 {
		return core.SpeechResult{}, synthError(
			fmt.Sprintf("openai: speech endpoint returned %d: %s", httpRes.StatusCode, truncate(strings.TrimSpace(string(audio)), 512)),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"status_code": httpRes.StatusCode},
		)
	}
	if int64(len(audio)) > limit {
		return core.SpeechResult{}, synthError(
			fmt.Sprintf("openai: audio exceeds limit of %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{"response_limit_b": limit},
		)
	}
	if len(audio) == 0 {
		return core.SpeechResult{}, core.ErrNoAudioProduced
	}

	contentType := strings.TrimSpace(httpRes.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = ContentTypeFor(format)
	}
	return core.SpeechResult{Audio: audio, ContentType: contentType}, nil
}

func (s *Synthesizer) voiceFor(voiceID string) string {
	key := strings.ToLower(strings.TrimSpace(voiceID))
	if key == "" {
		return s.DefaultVoice
	}
	if mapped, ok := s.Voices[key]; ok && mapped != "" {
		return mapped
	}
	return key
}

// ContentTypeFor returns the MIME type of an OpenAI response format.
func ContentTypeFor(format string) string {
	if contentType, ok := contentTypes[strings.ToLower(strings.TrimSpace(format))]; ok {
		return contentType
	}
	return "application/octet-stream"
}

// The endpoint has no SSML support, so markup is reduced to its text.
func speechInput(text string, textType core.TextType) string {
	if textType == core.TextTypeSSML {
		text = html.UnescapeString(ssmlTagPattern.ReplaceAllString(text, " "))
		text = strings.Join(strings.Fields(text), " ")
	}
	return strings.TrimSpace(text)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

var _ core.SpeechSynthesizer = (*Synthesizer)(nil)
