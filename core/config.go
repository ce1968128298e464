package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultBroadcastChannel = "noticast-messages"
	DefaultVoiceID          = "Salli"
	DefaultOutputFormat     = "mp3"
	DefaultLinkTTL          = time.Hour
)

type DirectoryConfig struct {
	MatchPolicy string `koanf:"match_policy" mapstructure:"match_policy"`
}

type MailConfig struct {
	Domain string `koanf:"domain" mapstructure:"domain"`
	System string `koanf:"system" mapstructure:"system"`
}

type PublishConfig struct {
	BroadcastChannel string   `koanf:"broadcast_channel" mapstructure:"broadcast_channel"`
	TestingStages    []string `koanf:"testing_stages" mapstructure:"testing_stages"`
}

type SpeechConfig struct {
	DefaultVoiceID  string `koanf:"default_voice_id" mapstructure:"default_voice_id"`
	DefaultTextType string `koanf:"default_text_type" mapstructure:"default_text_type"`
	OutputFormat    string `koanf:"output_format" mapstructure:"output_format"`
}

type AssetsConfig struct {
	LinkTTL time.Duration `koanf:"link_ttl" mapstructure:"link_ttl"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Stage       string          `koanf:"stage" mapstructure:"stage"`
	Directory   DirectoryConfig `koanf:"directory" mapstructure:"directory"`
	Mail        MailConfig      `koanf:"mail" mapstructure:"mail"`
	Publish     PublishConfig   `koanf:"publish" mapstructure:"publish"`
	Speech      SpeechConfig    `koanf:"speech" mapstructure:"speech"`
	Assets      AssetsConfig    `koanf:"assets" mapstructure:"assets"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "noticast",
		Stage:       "prod",
		Directory: DirectoryConfig{
			MatchPolicy: string(MatchPolicyExact),
		},
		Mail: MailConfig{
			System: "mail",
		},
		Publish: PublishConfig{
			BroadcastChannel: DefaultBroadcastChannel,
			TestingStages:    []string{"test", "testing", "dev"},
		},
		Speech: SpeechConfig{
			DefaultVoiceID:  DefaultVoiceID,
			DefaultTextType: string(TextTypePlain),
			OutputFormat:    DefaultOutputFormat,
		},
		Assets: AssetsConfig{
			LinkTTL: DefaultLinkTTL,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if _, err := ParseMatchPolicy(c.Directory.MatchPolicy); err != nil {
		return err
	}
	if strings.TrimSpace(c.Publish.BroadcastChannel) == "" {
		return fmt.Errorf("core: publish.broadcast_channel is required")
	}
	if textType := strings.TrimSpace(c.Speech.DefaultTextType); textType != "" && !TextType(textType).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTextType, textType)
	}
	if c.Assets.LinkTTL < 0 {
		return fmt.Errorf("core: assets.link_ttl must not be negative")
	}
	return nil
}

func (c Config) MatchPolicy() MatchPolicy {
	policy, err := ParseMatchPolicy(c.Directory.MatchPolicy)
	if err != nil {
		return MatchPolicyExact
	}
	return policy
}

func (c Config) linkTTL() time.Duration {
	if c.Assets.LinkTTL <= 0 {
		return DefaultLinkTTL
	}
	return c.Assets.LinkTTL
}
