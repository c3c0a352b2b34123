// Package config loads the service's configuration from a file and
// ACCESSD_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/viper"
)

// Config is the fully decoded, validated configuration for the service.
type Config struct {
	RBAC          RBACConfig
	JWT           JWTConfig
	Observability ObservabilityConfig
}

// RBACConfig names the key-value store backing the RBAC repository.
type RBACConfig struct {
	Region    string
	TableName string
}

// JWTConfig is the audience -> issuer -> kid -> algorithm -> key map plus
// the default token lifetime.
type JWTConfig struct {
	Identities        []IdentityConfig
	ExpirationMinutes int
}

// IdentityConfig is one row of the JWT provider's signing identity table.
type IdentityConfig struct {
	Audience    string
	Issuer      string
	KeyID       string
	Algorithm   string
	KeyMaterial string
}

// ObservabilityConfig configures the OTLP exporters.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPProtocol   string // "grpc" or "http"
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// configSchema rejects unknown keys at startup. It is compiled once and
// reused for every Load call.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["rbac", "jwt"],
  "properties": {
    "rbac": {
      "type": "object",
      "additionalProperties": false,
      "required": ["region", "tablename"],
      "properties": {
        "region":    {"type": "string"},
        "tablename": {"type": "string"}
      }
    },
    "jwt": {
      "type": "object",
      "additionalProperties": false,
      "required": ["identities"],
      "properties": {
        "expirationminutes": {"type": "integer"},
        "identities": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": false,
            "required": ["audience", "issuer", "keyid", "algorithm", "keymaterial"],
            "properties": {
              "audience":    {"type": "string"},
              "issuer":      {"type": "string"},
              "keyid":       {"type": "string"},
              "algorithm":   {"type": "string"},
              "keymaterial": {"type": "string"}
            }
          }
        }
      }
    },
    "observability": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "otlpendpoint":   {"type": "string"},
        "otlpprotocol":   {"type": "string"},
        "otlpinsecure":   {"type": "boolean"},
        "servicename":    {"type": "string"},
        "serviceversion": {"type": "string"},
        "environment":    {"type": "string"}
      }
    }
  }
}`

// Load reads configuration from path (if non-empty) or the default search
// locations, overlays ACCESSD_-prefixed environment variables, rejects
// unknown keys against configSchema, and decodes the result into Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("accessd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/accessd")
	}

	v.SetEnvPrefix("ACCESSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	// AutomaticEnv only affects Get(); AllSettings() won't surface an env
	// var unless the key was read at least once or explicitly bound, so
	// the scalar leaves get bound here.
	for _, key := range []string{
		"rbac.region", "rbac.tablename",
		"jwt.expirationminutes",
		"observability.otlpendpoint", "observability.otlpprotocol", "observability.otlpinsecure",
		"observability.servicename", "observability.serviceversion", "observability.environment",
	} {
		_ = v.BindEnv(key)
		_ = v.Get(key)
	}

	raw := v.AllSettings()
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateSchema(raw map[string]interface{}) error {
	compiler := jsonschema.NewCompiler()
	schema, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchema))
	if err != nil {
		return fmt.Errorf("parse config schema: %w", err)
	}
	if err := compiler.AddResource("config.json", schema); err != nil {
		return fmt.Errorf("add config schema resource: %w", err)
	}
	compiled, err := compiler.Compile("config.json")
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	if err := compiled.Validate(raw); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// validate checks the fields that are required for the service to start.
func (c *Config) validate() error {
	if c.RBAC.Region == "" {
		return fmt.Errorf("config: rbac.region is required")
	}
	if c.RBAC.TableName == "" {
		return fmt.Errorf("config: rbac.tablename is required")
	}
	if len(c.JWT.Identities) == 0 {
		return fmt.Errorf("config: jwt.identities must have at least one entry")
	}
	if c.JWT.ExpirationMinutes <= 0 {
		c.JWT.ExpirationMinutes = 60
	}
	seen := map[string]struct{}{}
	for _, id := range c.JWT.Identities {
		if id.Audience == "" || id.Issuer == "" || id.KeyID == "" || id.Algorithm == "" {
			return fmt.Errorf("config: jwt.identities entries require audience, issuer, keyid, algorithm")
		}
		if _, dup := seen[id.Audience]; dup {
			return fmt.Errorf("config: duplicate jwt.identities audience %q", id.Audience)
		}
		seen[id.Audience] = struct{}{}
	}
	return nil
}
