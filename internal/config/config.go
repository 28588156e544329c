package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind           string `yaml:"bind"`
	Port           int    `yaml:"port"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	MaxUploadMB    int    `yaml:"max_upload_mb"`
}

type Config struct {
	ServiceName string           `yaml:"service_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	LLM         LLMConfig        `yaml:"llm"`
	Image       ImageConfig      `yaml:"image"`
	TTS         TTSConfig        `yaml:"tts"`
	Dictionary  DictionaryConfig `yaml:"dictionary"`
	Export      ExportConfig     `yaml:"export"`
	Batch       BatchConfig      `yaml:"batch"`
	Playback    PlaybackConfig   `yaml:"playback"`
	Client      ClientConfig     `yaml:"client"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type LLMConfig struct {
	Mode              string  `yaml:"mode"` // mock, openai, exec
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Command           string  `yaml:"command"`
	SliceModel        string  `yaml:"slice_model"`
	PromptModel       string  `yaml:"prompt_model"`
	PinyinModel       string  `yaml:"pinyin_model"`
	SliceTemperature  float64 `yaml:"slice_temperature"`
	PromptTemperature float64 `yaml:"prompt_temperature"`
	PinyinTemperature float64 `yaml:"pinyin_temperature"`
	PinyinMaxTokens   int     `yaml:"pinyin_max_tokens"`
	TimeoutMS         int     `yaml:"timeout_ms"`
}

type ImageConfig struct {
	Mode      string `yaml:"mode"` // mock, gemini
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type TTSConfig struct {
	Mode         string `yaml:"mode"` // mock, minimax, exec
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	GroupID      string `yaml:"group_id"`
	Model        string `yaml:"model"`
	Command      string `yaml:"command"`
	DefaultVoice string `yaml:"default_voice"`
	SampleRate   int    `yaml:"sample_rate"`
	Bitrate      int    `yaml:"bitrate"`
	Format       string `yaml:"format"`
	MaxRetries   int    `yaml:"max_retries"`
	TimeoutMS    int    `yaml:"timeout_ms"`
}

type DictionaryConfig struct {
	Backend         string `yaml:"backend"` // memory, sqlite, sheets
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
	CredentialsJSON string `yaml:"credentials_json"`
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"`
	Path            string `yaml:"path"`
	CacheSize       int    `yaml:"cache_size"`
	CacheTTLMS      int    `yaml:"cache_ttl_ms"`
}

type ExportConfig struct {
	ServiceURL     string `yaml:"service_url"`
	TempDir        string `yaml:"temp_dir"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	TimeoutMS      int    `yaml:"timeout_ms"`
	// Finished jobs are forgotten this long after their last update.
	JobRetentionMS int `yaml:"job_retention_ms"`
}

type BatchConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

type PlaybackConfig struct {
	DefaultSegmentDuration float64 `yaml:"default_segment_duration"`
	DriftThreshold         float64 `yaml:"drift_threshold"`
	EndedDebounceMS        int     `yaml:"ended_debounce_ms"`
	FrameIntervalMS        int     `yaml:"frame_interval_ms"`
}

type ClientConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

func Default() Config {
	return Config{
		ServiceName: "contentbuddy",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:           "0.0.0.0",
			Port:           8080,
			ReadTimeoutMS:  30000,
			WriteTimeoutMS: 300000,
			MaxUploadMB:    512,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        true,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/contentbuddy-events.db",
			RetentionMode: "ephemeral",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		LLM: LLMConfig{
			Mode:              "mock",
			SliceModel:        "gpt-4o-mini",
			PromptModel:       "gpt-4o-mini",
			PinyinModel:       "gpt-4.1-mini",
			SliceTemperature:  0.3,
			PromptTemperature: 0.7,
			PinyinTemperature: 0.1,
			PinyinMaxTokens:   100,
			TimeoutMS:         60000,
		},
		Image: ImageConfig{
			Mode:      "mock",
			Model:     "gemini-2.5-flash-image",
			TimeoutMS: 120000,
		},
		TTS: TTSConfig{
			Mode:       "mock",
			Endpoint:   "https://api.minimax.chat/v1/t2a_v2",
			Model:      "speech-01-turbo",
			SampleRate: 32000,
			Bitrate:    128000,
			Format:     "mp3",
			MaxRetries: 3,
			TimeoutMS:  60000,
		},
		Dictionary: DictionaryConfig{
			Backend:    "memory",
			SheetName:  "Sheet1",
			Path:       "./data/contentbuddy-dictionary.db",
			CacheSize:  1,
			CacheTTLMS: 60000,
		},
		Export: ExportConfig{
			ServiceURL:     "http://localhost:8000",
			TempDir:        os.TempDir(),
			PollIntervalMS: 3000,
			TimeoutMS:      60000,
			JobRetentionMS: 3600000,
		},
		Batch: BatchConfig{
			ChunkSize: 3,
		},
		Playback: PlaybackConfig{
			DefaultSegmentDuration: 5,
			DriftThreshold:         0.5,
			EndedDebounceMS:        500,
			FrameIntervalMS:        16,
		},
		Client: ClientConfig{
			BaseURL:   "http://localhost:8080",
			TimeoutMS: 300000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "CB_SERVICE_NAME")
	overrideString(&cfg.Environment, "CB_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "CB_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "CB_HTTP_PORT")
	overrideInt(&cfg.HTTP.MaxUploadMB, "CB_HTTP_MAX_UPLOAD_MB")
	overrideString(&cfg.Telemetry.LogLevel, "CB_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "CB_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "CB_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "CB_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "CB_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "CB_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "CB_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "CB_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "CB_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "CB_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "CB_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "CB_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "CB_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "CB_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "CB_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "CB_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "CB_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "CB_EVENT_STORE_VACUUM_ON_START")

	overrideString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.LLM.Mode, "CB_LLM_MODE")
	overrideString(&cfg.LLM.APIKey, "CB_LLM_API_KEY")
	overrideString(&cfg.LLM.BaseURL, "CB_LLM_BASE_URL")
	overrideString(&cfg.LLM.Command, "CB_LLM_COMMAND")
	overrideString(&cfg.LLM.SliceModel, "CB_LLM_SLICE_MODEL")
	overrideString(&cfg.LLM.PromptModel, "CB_LLM_PROMPT_MODEL")
	overrideString(&cfg.LLM.PinyinModel, "CB_LLM_PINYIN_MODEL")
	overrideFloat(&cfg.LLM.SliceTemperature, "CB_LLM_SLICE_TEMPERATURE")
	overrideFloat(&cfg.LLM.PromptTemperature, "CB_LLM_PROMPT_TEMPERATURE")
	overrideFloat(&cfg.LLM.PinyinTemperature, "CB_LLM_PINYIN_TEMPERATURE")
	overrideInt(&cfg.LLM.PinyinMaxTokens, "CB_LLM_PINYIN_MAX_TOKENS")
	overrideInt(&cfg.LLM.TimeoutMS, "CB_LLM_TIMEOUT_MS")

	overrideString(&cfg.Image.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.Image.Mode, "CB_IMAGE_MODE")
	overrideString(&cfg.Image.APIKey, "CB_IMAGE_API_KEY")
	overrideString(&cfg.Image.Model, "CB_IMAGE_MODEL")
	overrideInt(&cfg.Image.TimeoutMS, "CB_IMAGE_TIMEOUT_MS")

	overrideString(&cfg.TTS.APIKey, "MINIMAX_API_KEY")
	overrideString(&cfg.TTS.GroupID, "MINIMAX_GROUP_ID")
	overrideString(&cfg.TTS.Mode, "CB_TTS_MODE")
	overrideString(&cfg.TTS.Endpoint, "CB_TTS_ENDPOINT")
	overrideString(&cfg.TTS.APIKey, "CB_TTS_API_KEY")
	overrideString(&cfg.TTS.GroupID, "CB_TTS_GROUP_ID")
	overrideString(&cfg.TTS.Model, "CB_TTS_MODEL")
	overrideString(&cfg.TTS.Command, "CB_TTS_COMMAND")
	overrideString(&cfg.TTS.DefaultVoice, "CB_TTS_DEFAULT_VOICE")
	overrideInt(&cfg.TTS.SampleRate, "CB_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Bitrate, "CB_TTS_BITRATE")
	overrideString(&cfg.TTS.Format, "CB_TTS_FORMAT")
	overrideInt(&cfg.TTS.MaxRetries, "CB_TTS_MAX_RETRIES")
	overrideInt(&cfg.TTS.TimeoutMS, "CB_TTS_TIMEOUT_MS")

	overrideString(&cfg.Dictionary.SpreadsheetID, "GOOGLE_SHEET_ID")
	overrideString(&cfg.Dictionary.CredentialsJSON, "GOOGLE_SERVICE_ACCOUNT_KEY")
	overrideString(&cfg.Dictionary.Backend, "CB_DICTIONARY_BACKEND")
	overrideString(&cfg.Dictionary.SpreadsheetID, "CB_DICTIONARY_SPREADSHEET_ID")
	overrideString(&cfg.Dictionary.SheetName, "CB_DICTIONARY_SHEET_NAME")
	overrideString(&cfg.Dictionary.CredentialsJSON, "CB_DICTIONARY_CREDENTIALS_JSON")
	overrideString(&cfg.Dictionary.CredentialsFile, "CB_DICTIONARY_CREDENTIALS_FILE")
	overrideString(&cfg.Dictionary.Endpoint, "CB_DICTIONARY_ENDPOINT")
	overrideString(&cfg.Dictionary.Path, "CB_DICTIONARY_PATH")
	overrideInt(&cfg.Dictionary.CacheSize, "CB_DICTIONARY_CACHE_SIZE")
	overrideInt(&cfg.Dictionary.CacheTTLMS, "CB_DICTIONARY_CACHE_TTL_MS")

	overrideString(&cfg.Export.ServiceURL, "AUTOVIDEOMAKER_URL")
	overrideString(&cfg.Export.ServiceURL, "CB_EXPORT_SERVICE_URL")
	overrideString(&cfg.Export.TempDir, "CB_EXPORT_TEMP_DIR")
	overrideInt(&cfg.Export.PollIntervalMS, "CB_EXPORT_POLL_INTERVAL_MS")
	overrideInt(&cfg.Export.TimeoutMS, "CB_EXPORT_TIMEOUT_MS")
	overrideInt(&cfg.Export.JobRetentionMS, "CB_EXPORT_JOB_RETENTION_MS")

	overrideInt(&cfg.Batch.ChunkSize, "CB_BATCH_CHUNK_SIZE")

	overrideFloat(&cfg.Playback.DefaultSegmentDuration, "CB_PLAYBACK_DEFAULT_SEGMENT_DURATION")
	overrideFloat(&cfg.Playback.DriftThreshold, "CB_PLAYBACK_DRIFT_THRESHOLD")
	overrideInt(&cfg.Playback.EndedDebounceMS, "CB_PLAYBACK_ENDED_DEBOUNCE_MS")
	overrideInt(&cfg.Playback.FrameIntervalMS, "CB_PLAYBACK_FRAME_INTERVAL_MS")

	overrideString(&cfg.Client.BaseURL, "CB_CLIENT_BASE_URL")
	overrideInt(&cfg.Client.TimeoutMS, "CB_CLIENT_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxUploadMB <= 0 {
		return errors.New("http.max_upload_mb must be positive")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}

	switch cfg.LLM.Mode {
	case "mock", "openai", "exec":
	default:
		return errors.New("llm.mode must be one of mock|openai|exec")
	}
	if cfg.LLM.Mode == "openai" && cfg.LLM.APIKey == "" {
		return errors.New("llm.api_key must be set when mode=openai")
	}
	if cfg.LLM.Mode == "exec" && cfg.LLM.Command == "" {
		return errors.New("llm.command must be set when mode=exec")
	}
	if cfg.LLM.PinyinMaxTokens < 0 {
		return errors.New("llm.pinyin_max_tokens must be >= 0")
	}

	switch cfg.Image.Mode {
	case "mock", "gemini":
	default:
		return errors.New("image.mode must be one of mock|gemini")
	}
	if cfg.Image.Mode == "gemini" && cfg.Image.APIKey == "" {
		return errors.New("image.api_key must be set when mode=gemini")
	}

	switch cfg.TTS.Mode {
	case "mock", "minimax", "exec":
	default:
		return errors.New("tts.mode must be one of mock|minimax|exec")
	}
	if cfg.TTS.Mode == "minimax" {
		if cfg.TTS.APIKey == "" || cfg.TTS.GroupID == "" {
			return errors.New("tts.api_key and tts.group_id must be set when mode=minimax")
		}
		if cfg.TTS.Endpoint == "" {
			return errors.New("tts.endpoint must be set when mode=minimax")
		}
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.SampleRate <= 0 {
		return errors.New("tts.sample_rate must be positive")
	}
	if cfg.TTS.MaxRetries < 0 {
		return errors.New("tts.max_retries must be >= 0")
	}

	switch cfg.Dictionary.Backend {
	case "memory", "sqlite", "sheets":
	default:
		return errors.New("dictionary.backend must be one of memory|sqlite|sheets")
	}
	if cfg.Dictionary.Backend == "sheets" {
		if cfg.Dictionary.SpreadsheetID == "" {
			return errors.New("dictionary.spreadsheet_id must be set when backend=sheets")
		}
		if cfg.Dictionary.SheetName == "" {
			return errors.New("dictionary.sheet_name must not be empty")
		}
	}
	if cfg.Dictionary.Backend == "sqlite" && cfg.Dictionary.Path == "" {
		return errors.New("dictionary.path must be set when backend=sqlite")
	}
	if cfg.Dictionary.CacheTTLMS < 0 {
		return errors.New("dictionary.cache_ttl_ms must be >= 0")
	}

	if cfg.Export.ServiceURL == "" {
		return errors.New("export.service_url must not be empty")
	}
	if cfg.Export.TempDir == "" {
		return errors.New("export.temp_dir must not be empty")
	}
	if cfg.Export.PollIntervalMS <= 0 {
		return errors.New("export.poll_interval_ms must be positive")
	}
	if cfg.Export.JobRetentionMS <= 0 {
		return errors.New("export.job_retention_ms must be positive")
	}

	if cfg.Batch.ChunkSize < 0 {
		return errors.New("batch.chunk_size must be >= 0")
	}
	if cfg.Playback.DefaultSegmentDuration <= 0 {
		return errors.New("playback.default_segment_duration must be positive")
	}
	if cfg.Playback.DriftThreshold < 0 {
		return errors.New("playback.drift_threshold must be >= 0")
	}
	if cfg.Playback.FrameIntervalMS <= 0 {
		return errors.New("playback.frame_interval_ms must be positive")
	}
	return nil
}
