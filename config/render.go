package config

import (
	"io"

	"go.yaml.in/yaml/v3"
)

const redacted = "********"

var secretKeys = map[string]bool{
	"api_key":  true,
	"dsn":      true,
	"password": true,
	"secret":   true,
}

// WriteYAML renders a raw document with secret values masked.
func WriteYAML(w io.Writer, raw map[string]any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(redact(raw)); err != nil {
		return err
	}
	return encoder.Close()
}

func redact(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		switch typed := value.(type) {
		case map[string]any:
			out[key] = redact(typed)
		default:
			if secretKeys[key] && value != nil && value != "" {
				out[key] = redacted
				continue
			}
			out[key] = value
		}
	}
	return out
}

