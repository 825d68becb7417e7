package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/carebridge-dev/carebridge/internal/classify"
)

// EnvPrefix is the namespace prefix for all CareBridge environment variables.
const EnvPrefix = "CAREBRIDGE_"

// Config holds all application configuration. Secrets (API keys, auth
// tokens) are loaded exclusively from environment variables and never appear
// in the config file.
type Config struct {
	ListenAddr         string `yaml:"listen_addr"`
	DBPath             string `yaml:"db_path"`
	PublicHost         string `yaml:"public_host"`
	OpenAIModel        string `yaml:"openai_model"`
	ClassifierFailMode string `yaml:"classifier_fail_mode"`

	TwilioAccountSID      string `yaml:"twilio_account_sid"`
	TwilioFromNumber      string `yaml:"twilio_from_number"`
	TwilioResponderNumber string `yaml:"twilio_responder_number"`

	ElevenLabsAgentID string `yaml:"elevenlabs_agent_id"`

	// Secrets — env vars only, never serialized to YAML.
	TwilioAuthToken  string `yaml:"-"`
	OpenAIAPIKey     string `yaml:"-"`
	ElevenLabsAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:         "0.0.0.0:8080",
		DBPath:             "data/carebridge.db",
		OpenAIModel:        "gpt-4o",
		ClassifierFailMode: "open",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// FailMode parses the configured classifier fail mode, falling back to
// fail-open if the value is invalid.
func (c *Config) FailMode() classify.FailMode {
	mode, err := classify.ParseFailMode(c.ClassifierFailMode)
	if err != nil {
		return classify.FailOpen
	}
	return mode
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "PUBLIC_HOST"); v != "" {
		cfg.PublicHost = v
	}
	if v := os.Getenv(EnvPrefix + "OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
	if v := os.Getenv(EnvPrefix + "CLASSIFIER_FAIL_MODE"); v != "" {
		cfg.ClassifierFailMode = v
	}
	if v := os.Getenv(EnvPrefix + "TWILIO_ACCOUNT_SID"); v != "" {
		cfg.TwilioAccountSID = v
	}
	if v := os.Getenv(EnvPrefix + "TWILIO_FROM_NUMBER"); v != "" {
		cfg.TwilioFromNumber = v
	}
	if v := os.Getenv(EnvPrefix + "TWILIO_RESPONDER_NUMBER"); v != "" {
		cfg.TwilioResponderNumber = v
	}
	if v := os.Getenv(EnvPrefix + "ELEVENLABS_AGENT_ID"); v != "" {
		cfg.ElevenLabsAgentID = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.TwilioAuthToken = os.Getenv(EnvPrefix + "TWILIO_AUTH_TOKEN")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.ElevenLabsAPIKey = os.Getenv(EnvPrefix + "ELEVENLABS_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		warnings = append(warnings, "Twilio credentials not configured — emergency transfers are disabled. Set twilio_account_sid and "+EnvPrefix+"TWILIO_AUTH_TOKEN.")
	}
	if cfg.TwilioResponderNumber == "" {
		warnings = append(warnings, "Responder number not configured — the responder leg of a transfer cannot be dialed. Set twilio_responder_number.")
	}
	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured — emergency classification is disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}
	if cfg.ElevenLabsAgentID == "" || cfg.ElevenLabsAPIKey == "" {
		warnings = append(warnings, "ElevenLabs agent not configured — calls cannot be answered. Set elevenlabs_agent_id and "+EnvPrefix+"ELEVENLABS_API_KEY.")
	}
	if cfg.PublicHost == "" {
		warnings = append(warnings, "public_host not configured — stream URLs fall back to the webhook's Host header.")
	}
	if _, err := classify.ParseFailMode(cfg.ClassifierFailMode); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid classifier_fail_mode %q — using fail-open.", cfg.ClassifierFailMode))
	}

	return warnings
}
