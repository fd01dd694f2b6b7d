package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "DB_PATH", "AUDIO_DIR",
		"VOICE_MODEL", "VOICE_NAME", "PERSONA", "SUMMARY_MODEL",
		"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "CONFIG",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("expected default listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "data/visavox.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.AudioDir != "data/audio" {
		t.Fatalf("expected default audio_dir, got %q", cfg.AudioDir)
	}
	if cfg.VoiceModel != "gemini-2.0-flash-live-001" {
		t.Fatalf("expected default voice_model, got %q", cfg.VoiceModel)
	}
	if cfg.VoiceName != "Puck" {
		t.Fatalf("expected default voice_name, got %q", cfg.VoiceName)
	}
	if !strings.Contains(cfg.Persona, "visa qualification assistant") {
		t.Fatalf("expected default persona, got %q", cfg.Persona)
	}
	if cfg.SummaryModel != "gemini/gemini-2.0-flash" {
		t.Fatalf("expected default summary_model, got %q", cfg.SummaryModel)
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
listen_addr: 0.0.0.0:9000
db_path: /custom/db.sqlite
audio_dir: /custom/audio
voice_model: gemini-live-custom
voice_name: Kore
persona: Custom persona text.
summary_model: openai/gpt-4o
gdrive_folder_id: my-folder
google_credentials_file: /path/to/creds.json
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("expected yaml listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if cfg.VoiceModel != "gemini-live-custom" {
		t.Fatalf("expected yaml voice_model, got %q", cfg.VoiceModel)
	}
	if cfg.VoiceName != "Kore" {
		t.Fatalf("expected yaml voice_name, got %q", cfg.VoiceName)
	}
	if cfg.Persona != "Custom persona text." {
		t.Fatalf("expected yaml persona, got %q", cfg.Persona)
	}
	if cfg.SummaryModel != "openai/gpt-4o" {
		t.Fatalf("expected yaml summary_model, got %q", cfg.SummaryModel)
	}
	if cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive_folder_id, got %q", cfg.GDriveFolderID)
	}
	if cfg.GoogleCredentialsFile != "/path/to/creds.json" {
		t.Fatalf("expected yaml google_credentials_file, got %q", cfg.GoogleCredentialsFile)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /from/yaml
summary_model: openai/gpt-yaml
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")
	t.Setenv(EnvPrefix+"SUMMARY_MODEL", "anthropic/claude-env")
	t.Setenv(EnvPrefix+"VOICE_NAME", "Charon")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env override for db_path, got %q", cfg.DBPath)
	}
	if cfg.SummaryModel != "anthropic/claude-env" {
		t.Fatalf("expected env override for summary_model, got %q", cfg.SummaryModel)
	}
	if cfg.VoiceName != "Charon" {
		t.Fatalf("expected env override for voice_name, got %q", cfg.VoiceName)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "gem-secret")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "oai-secret")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "ant-secret")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GeminiAPIKey != "gem-secret" {
		t.Fatalf("expected gemini key from env, got %q", cfg.GeminiAPIKey)
	}
	if cfg.OpenAIAPIKey != "oai-secret" {
		t.Fatalf("expected openai key from env, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.AnthropicAPIKey != "ant-secret" {
		t.Fatalf("expected anthropic key from env, got %q", cfg.AnthropicAPIKey)
	}
}

func TestSecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
gemini_api_key: should-be-ignored
openai_api_key: also-ignored
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GeminiAPIKey != "" {
		t.Fatalf("expected empty gemini key (yaml should be ignored), got %q", cfg.GeminiAPIKey)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("expected empty openai key (yaml should be ignored), got %q", cfg.OpenAIAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var voiceWarning, summaryWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "Gemini API key") {
			voiceWarning = true
		}
		if strings.Contains(w, "summary model") {
			summaryWarning = true
		}
	}

	if !voiceWarning {
		t.Fatalf("expected Gemini warning when key is missing, got warnings: %v", warnings)
	}
	if !summaryWarning {
		t.Fatalf("expected summary warning when key is missing, got warnings: %v", warnings)
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "key")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when fully configured, got: %v", warnings)
	}
}

func TestSummaryAPIKeySelection(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "gem")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "oai")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "ant")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.SummaryAPIKey("gemini"); got != "gem" {
		t.Fatalf("expected gemini key, got %q", got)
	}
	if got := cfg.SummaryAPIKey("openai"); got != "oai" {
		t.Fatalf("expected openai key, got %q", got)
	}
	if got := cfg.SummaryAPIKey("anthropic"); got != "ant" {
		t.Fatalf("expected anthropic key, got %q", got)
	}
	if got := cfg.SummaryAPIKey("other"); got != "" {
		t.Fatalf("expected empty key for unknown provider, got %q", got)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for missing config file, got: %v", err)
	}

	if cfg.DBPath != "data/visavox.db" {
		t.Fatalf("expected defaults when config file missing, got db_path=%q", cfg.DBPath)
	}
}

func TestInvalidConfigFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte(":::invalid yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)

	_, _, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}
