package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Visavox environment variables.
const EnvPrefix = "VISAVOX_"

const defaultPersona = `You are a friendly visa qualification assistant for an immigration consultancy.
Ask the caller about their nationality, occupation, education, and destination country.
Give general guidance about which visa categories may fit and what documents are usually required.
Keep answers short and conversational. You are not a lawyer and must say so if asked for legal advice.`

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string `yaml:"listen_addr"`
	DBPath                string `yaml:"db_path"`
	AudioDir              string `yaml:"audio_dir"`
	VoiceModel            string `yaml:"voice_model"`
	VoiceName             string `yaml:"voice_name"`
	Persona               string `yaml:"persona"`
	SummaryModel          string `yaml:"summary_model"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets come from env vars only, never serialized to YAML.
	GeminiAPIKey    string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            "127.0.0.1:8080",
		DBPath:                "data/visavox.db",
		AudioDir:              "data/audio",
		VoiceModel:            "gemini-2.0-flash-live-001",
		VoiceName:             "Puck",
		Persona:               defaultPersona,
		SummaryModel:          "gemini/gemini-2.0-flash",
		GoogleCredentialsFile: "./service-account.json",
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

// SummaryAPIKey returns the secret matching the configured summary
// provider.
func (c *Config) SummaryAPIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "VOICE_MODEL"); v != "" {
		cfg.VoiceModel = v
	}
	if v := os.Getenv(EnvPrefix + "VOICE_NAME"); v != "" {
		cfg.VoiceName = v
	}
	if v := os.Getenv(EnvPrefix + "PERSONA"); v != "" {
		cfg.Persona = v
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_MODEL"); v != "" {
		cfg.SummaryModel = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.GeminiAPIKey == "" {
		warnings = append(warnings, "Gemini API key not configured, live voice calls are disabled. Set "+EnvPrefix+"GEMINI_API_KEY.")
	}
	if cfg.SummaryAPIKey(summaryProvider(cfg)) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key configured for summary model %q, call summaries are disabled.", cfg.SummaryModel))
	}

	return warnings
}

func summaryProvider(cfg *Config) string {
	provider, _, ok := strings.Cut(cfg.SummaryModel, "/")
	if !ok {
		return ""
	}
	return provider
}
