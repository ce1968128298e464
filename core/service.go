package core

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	directory       EndpointDirectory
	synthesizer     SpeechSynthesizer
	assetStore      AssetStore
	bus             NotificationBus
	telemetry       TelemetryReporter
	ledger          DispatchLedger
	newDispatchID   func() string
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("noticast", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("noticast"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.telemetry == nil {
		builder.telemetry = NopTelemetryReporter{}
	}
	if builder.newDispatchID == nil {
		builder.newDispatchID = uuid.NewString
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	switch {
	case builder.directory == nil:
		return nil, mapBuildError(builder.errorMapper, ErrDirectoryNotDefined)
	case builder.synthesizer == nil:
		return nil, mapBuildError(builder.errorMapper, ErrSynthesizerNotSet)
	case builder.assetStore == nil:
		return nil, mapBuildError(builder.errorMapper, ErrAssetStoreNotSet)
	case builder.bus == nil:
		return nil, mapBuildError(builder.errorMapper, ErrBusNotSet)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		directory:       builder.directory,
		synthesizer:     builder.synthesizer,
		assetStore:      builder.assetStore,
		bus:             builder.bus,
		telemetry:       builder.telemetry,
		ledger:          builder.ledger,
		newDispatchID:   builder.newDispatchID,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Telemetry() TelemetryReporter {
	if s == nil || s.telemetry == nil {
		return NopTelemetryReporter{}
	}
	return s.telemetry
}

// Resolve maps an identifier to its devices without synthesizing or
// publishing anything.
func (s *Service) Resolve(ctx context.Context, identifier string) (target ResolvedTarget, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"target": identifier}
	defer func() {
		s.observeOperation(ctx, startedAt, "resolve", err, fields)
	}()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ResolvedTarget{}, NewValidationError("target is required",
			goerrors.FieldError{Field: "target", Message: "cannot be blank"})
	}
	target, err = s.resolveTarget(ctx, identifier)
	if err != nil {
		return ResolvedTarget{}, err
	}
	fields["device_count"] = len(target.Devices)
	fields["is_group"] = target.IsGroup
	return target, nil
}

// Dispatch resolves the target, synthesizes the message, stores the audio and
// fans the envelope out unless the publish gate suppresses it.
func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (envelope DispatchEnvelope, err error) {
	startedAt := time.Now().UTC()
	dispatchID := s.newDispatchID()
	fields := map[string]any{
		"dispatch_id": dispatchID,
		"target":      req.Target,
		"stage":       req.Stage,
		"testing":     req.Testing,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "dispatch", err, fields)
	}()

	req, err = s.prepareRequest(req)
	if err != nil {
		return DispatchEnvelope{}, err
	}

	target, err := s.resolveTarget(ctx, req.Target)
	if err != nil {
		return DispatchEnvelope{}, err
	}
	fields["device_count"] = len(target.Devices)
	fields["is_group"] = target.IsGroup

	key := s.assetStore.NewKey(s.config.Speech.OutputFormat)
	fields["asset_key"] = key

	stored, err := s.synthesizeAndStore(ctx, key, req)
	if err != nil {
		return DispatchEnvelope{}, err
	}
	fields["asset_stored"] = stored

	uri, err := s.assetStore.PresignedURI(ctx, key, s.config.linkTTL())
	if err != nil {
		return DispatchEnvelope{}, NewExternalError(err, "core: presign asset link failed", map[string]any{
			"asset_key": key,
		})
	}

	envelope = DispatchEnvelope{
		Message: req.Message,
		URI:     uri,
		Devices: target.DeviceARNs(),
		IsGroup: target.IsGroup,
	}

	if !s.publishAllowed(req.Stage, req.Testing) {
		fields["published"] = false
		return envelope, nil
	}

	envelope.Published = true
	report, err := s.fanOut(ctx, dispatchID, envelope)
	fields["published"] = true
	fields["publish_failures"] = len(report.Failed)
	if err != nil {
		return DispatchEnvelope{}, err
	}
	return envelope, nil
}

func (s *Service) prepareRequest(req DispatchRequest) (DispatchRequest, error) {
	req.Target = strings.TrimSpace(req.Target)
	req.TextType = strings.TrimSpace(strings.ToLower(req.TextType))
	req.VoiceID = strings.TrimSpace(req.VoiceID)
	req.Stage = strings.TrimSpace(req.Stage)

	if err := req.Validate(); err != nil {
		return DispatchRequest{}, goerrors.FromOzzoValidation(err, "invalid dispatch request").
			WithCode(http.StatusBadRequest).
			WithTextCode(ErrorBadInput)
	}

	if req.TextType == "" {
		req.TextType = strings.TrimSpace(s.config.Speech.DefaultTextType)
	}
	if req.TextType == "" {
		req.TextType = string(TextTypePlain)
	}
	if req.VoiceID == "" {
		req.VoiceID = strings.TrimSpace(s.config.Speech.DefaultVoiceID)
	}
	if req.VoiceID == "" {
		req.VoiceID = DefaultVoiceID
	}
	if req.Stage == "" {
		req.Stage = s.config.Stage
	}
	return req, nil
}

// Validate checks the fields a caller must always supply.
func (r DispatchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Target, validation.Required, validation.By(notBlank)),
		validation.Field(&r.Message, validation.Required, validation.By(notBlank)),
		validation.Field(&r.TextType, validation.In(string(TextTypePlain), string(TextTypeSSML))),
	)
}

func notBlank(value any) error {
	text, _ := value.(string)
	if strings.TrimSpace(text) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
}

func (s *Service) resolveTarget(ctx context.Context, identifier string) (ResolvedTarget, error) {
	target, err := s.directory.Resolve(ctx, identifier)
	if err != nil {
		if IsTargetNotFound(err) {
			return ResolvedTarget{}, err
		}
		return ResolvedTarget{}, NewExternalError(err, "core: resolve target failed", map[string]any{
			"target": identifier,
		})
	}
	if len(target.Devices) == 0 && !target.IsGroup {
		return ResolvedTarget{}, NewTargetNotFoundError(identifier)
	}
	return target, nil
}

func (s *Service) synthesizeAndStore(ctx context.Context, key string, req DispatchRequest) (bool, error) {
	speech, err := s.synthesizer.Synthesize(ctx, SpeechRequest{
		Text:         req.Message,
		TextType:     TextType(req.TextType),
		VoiceID:      req.VoiceID,
		OutputFormat: s.config.Speech.OutputFormat,
	})
	if err != nil && !errors.Is(err, ErrNoAudioProduced) {
		return false, NewExternalError(err, "core: speech synthesis failed", map[string]any{
			"voice_id": req.VoiceID,
		})
	}
	if err != nil || len(speech.Audio) == 0 {
		s.logWithLevel(ctx, "warn", "speech synthesis produced no audio", map[string]any{
			"asset_key": key,
			"voice_id":  req.VoiceID,
		})
		return false, nil
	}
	if err := s.assetStore.Store(ctx, key, speech.Audio, speech.ContentType); err != nil {
		return false, NewExternalError(err, "core: store asset failed", map[string]any{
			"asset_key": key,
		})
	}
	return true, nil
}
