package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Secret keys understood by the application, with their environment
// fallbacks.
const (
	KeyPassword      = "pw"
	KeyOpenAIAPIKey  = "openai_api_key"
	KeyTone          = "tone_of_voice"
	KeyAssistantID   = "assistant_id"
	KeyVectorStoreID = "vector_store_id"

	EnvPassword      = "APP_PASSWORD"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvTone          = "TONE_OF_VOICE"
	EnvAssistantID   = "ASSISTANT_ID"
	EnvVectorStoreID = "VECTOR_STORE_ID"
)

// ErrSecretNotFound is returned when a key is in none of the layers.
var ErrSecretNotFound = errors.New("secret not found")

// ConfigError reports a missing required secret. It names both places the
// value may be provided.
type ConfigError struct {
	Key      string
	EnvVar   string
	Friendly string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configure the secret '%s' (secrets['%s'] or environment variable '%s')",
		e.Friendly, e.Key, e.EnvVar)
}

// Secrets resolves named values from a secrets file first, then the
// environment, then an optional default. Lookups are read-only.
type Secrets struct {
	values    map[string]any
	lookupEnv func(string) (string, bool)
}

// NewSecrets builds a resolver over an in-memory secret layer. A nil
// lookupEnv uses the process environment.
func NewSecrets(values map[string]any, lookupEnv func(string) (string, bool)) *Secrets {
	if values == nil {
		values = map[string]any{}
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &Secrets{values: values, lookupEnv: lookupEnv}
}

// LoadSecrets decodes the TOML secrets file at path. A missing file yields
// an empty secret layer; a malformed one is an error.
func LoadSecrets(path string) (*Secrets, error) {
	values := map[string]any{}
	if path != "" {
		if _, err := toml.DecodeFile(path, &values); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return NewSecrets(nil, nil), nil
			}
			return NewSecrets(nil, nil), fmt.Errorf("decode secrets %s: %w", path, err)
		}
	}
	return NewSecrets(values, nil), nil
}

// Resolve looks key up in the secret layer, then envVar (key upper-cased
// when empty), then def when one is given.
func (s *Secrets) Resolve(key, envVar string, def ...string) (string, error) {
	if envVar == "" {
		envVar = strings.ToUpper(key)
	}

	if v, ok := s.values[key]; ok {
		return fmt.Sprint(v), nil
	}

	if v, ok := s.lookupEnv(envVar); ok && v != "" {
		return v, nil
	}

	if len(def) > 0 {
		return def[0], nil
	}

	return "", fmt.Errorf("%w: '%s' and environment variable '%s'", ErrSecretNotFound, key, envVar)
}

// Lookup is Resolve without a default, reporting presence instead of an
// error.
func (s *Secrets) Lookup(key, envVar string) (string, bool) {
	v, err := s.Resolve(key, envVar)
	return v, err == nil
}

// Require resolves a mandatory value. A miss is reported as *ConfigError.
func (s *Secrets) Require(key, envVar, friendly string) (string, error) {
	v, err := s.Resolve(key, envVar)
	if err == nil {
		return v, nil
	}
	if envVar == "" {
		envVar = strings.ToUpper(key)
	}
	if friendly == "" {
		friendly = key
	}
	return "", &ConfigError{Key: key, EnvVar: envVar, Friendly: friendly}
}

// Credentials are the startup secrets of the application.
type Credentials struct {
	Password     string
	OpenAIAPIKey string

	// Tone is empty when not configured; the session falls back to the
	// default tone.
	Tone          string
	AssistantID   string
	VectorStoreID string
}

// Credentials resolves the required and optional startup secrets. The
// first missing required secret is returned as *ConfigError.
func (s *Secrets) Credentials() (*Credentials, error) {
	pw, err := s.Require(KeyPassword, EnvPassword, "access password")
	if err != nil {
		return nil, err
	}
	apiKey, err := s.Require(KeyOpenAIAPIKey, EnvOpenAIAPIKey, "OpenAI API Key")
	if err != nil {
		return nil, err
	}

	creds := &Credentials{Password: pw, OpenAIAPIKey: apiKey}
	creds.Tone, _ = s.Lookup(KeyTone, EnvTone)
	creds.AssistantID, _ = s.Lookup(KeyAssistantID, EnvAssistantID)
	creds.VectorStoreID, _ = s.Lookup(KeyVectorStoreID, EnvVectorStoreID)
	return creds, nil
}
