package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type memoryDirectory struct {
	devices map[string]Device
	groups  map[string]Group
	err     error
	calls   int
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{devices: map[string]Device{}, groups: map[string]Group{}}
}

func (d *memoryDirectory) addDevice(arn string) *memoryDirectory {
	d.devices[arn] = Device{ARN: arn}
	return d
}

func (d *memoryDirectory) addGroup(arn string, members ...string) *memoryDirectory {
	group := Group{ARN: arn}
	for _, member := range members {
		device := Device{ARN: member, GroupARN: arn}
		d.devices[member] = device
		group.Devices = append(group.Devices, device)
	}
	d.groups[arn] = group
	return d
}

func (d *memoryDirectory) Resolve(_ context.Context, identifier string) (ResolvedTarget, error) {
	d.calls++
	if d.err != nil {
		return ResolvedTarget{}, d.err
	}
	if device, ok := d.devices[identifier]; ok {
		return ResolvedTarget{Devices: []Device{device}}, nil
	}
	if group, ok := d.groups[identifier]; ok {
		return ResolvedTarget{Devices: append([]Device(nil), group.Devices...), IsGroup: true}, nil
	}
	return ResolvedTarget{}, NewTargetNotFoundError(identifier)
}

type stubSynthesizer struct {
	audio    []byte
	err      error
	requests []SpeechRequest
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req SpeechRequest) (SpeechResult, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return SpeechResult{}, s.err
	}
	return SpeechResult{Audio: s.audio, ContentType: "audio/mpeg"}, nil
}

type memoryAssetStore struct {
	next      int
	objects   map[string][]byte
	presigned []string
	storeErr  error
}

func newMemoryAssetStore() *memoryAssetStore {
	return &memoryAssetStore{objects: map[string][]byte{}}
}

func (s *memoryAssetStore) NewKey(format string) string {
	s.next++
	return fmt.Sprintf("asset-%d.%s", s.next, format)
}

func (s *memoryAssetStore) Store(_ context.Context, key string, data []byte, _ string) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memoryAssetStore) PresignedURI(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.presigned = append(s.presigned, key)
	return fmt.Sprintf("https://assets.example/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

type publishedMessage struct {
	channel string
	payload string
	qos     QoS
}

type recordingBus struct {
	mu        sync.Mutex
	published []publishedMessage
	failOn    map[string]error
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte, qos QoS) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failOn[channel]; err != nil {
		return err
	}
	b.published = append(b.published, publishedMessage{channel: channel, payload: string(payload), qos: qos})
	return nil
}

func (b *recordingBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.published))
	for _, message := range b.published {
		out = append(out, message.channel)
	}
	return out
}

type memoryLedger struct {
	attempts []PublishAttempt
	err      error
}

func (l *memoryLedger) RecordAttempt(_ context.Context, attempt PublishAttempt) error {
	l.attempts = append(l.attempts, attempt)
	return l.err
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
	err    error
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l.err != nil {
		return nil, l.err
	}
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type fixture struct {
	directory   *memoryDirectory
	synthesizer *stubSynthesizer
	assets      *memoryAssetStore
	bus         *recordingBus
	ledger      *memoryLedger
}

func newFixture() *fixture {
	return &fixture{
		directory:   newMemoryDirectory(),
		synthesizer: &stubSynthesizer{audio: []byte("mp3-bytes")},
		assets:      newMemoryAssetStore(),
		bus:         &recordingBus{failOn: map[string]error{}},
		ledger:      &memoryLedger{},
	}
}

func (f *fixture) options(extra ...Option) []Option {
	opts := []Option{
		WithEndpointDirectory(f.directory),
		WithSpeechSynthesizer(f.synthesizer),
		WithAssetStore(f.assets),
		WithNotificationBus(f.bus),
		WithDispatchLedger(f.ledger),
		WithDispatchIDGenerator(func() string { return "dispatch-1" }),
	}
	return append(opts, extra...)
}

var errBoom = errors.New("boom")
