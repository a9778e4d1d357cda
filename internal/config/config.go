package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMConfig identifies one model endpoint. Provider is "ollama" or "openai"
// (any OpenAI-compatible server works for the latter).
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type TTSConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	UploadDir      string `yaml:"upload_dir"`
	TempDir        string `yaml:"temp_dir"`
	StaticDir      string `yaml:"static_dir"`
	TempTTLMinutes int    `yaml:"temp_ttl_minutes"`
}

type RAGConfig struct {
	ChunkSize    int     `yaml:"chunk_size"`
	ChunkOverlap int     `yaml:"chunk_overlap"`
	TopK         int     `yaml:"top_k"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
	MaxTokens    int     `yaml:"max_tokens"`
}

type VADConfig struct {
	Threshold     float64 `yaml:"threshold"`
	MinSilence    float64 `yaml:"min_silence"`
	SampleRate    int     `yaml:"sample_rate"`
	StrictSilence bool    `yaml:"strict_silence"`
}

type StreamConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"` // chromem or pgvector
	Path       string `yaml:"path"`
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	VectorSize int    `yaml:"vector_size"`
	Debug      bool   `yaml:"debug"`
}

type Config struct {
	Server       ServerConfig  `yaml:"server"`
	EmbedLLM     LLMConfig     `yaml:"embed_llm"`
	InferenceLLM LLMConfig     `yaml:"inference_llm"`
	STT          LLMConfig     `yaml:"stt"`
	TTS          TTSConfig     `yaml:"tts"`
	RAG          RAGConfig     `yaml:"rag"`
	VAD          VADConfig     `yaml:"vad"`
	Stream       StreamConfig  `yaml:"stream"`
	Storage      StorageConfig `yaml:"storage"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "./uploads"
	}
	if c.Server.TempDir == "" {
		c.Server.TempDir = "./temp"
	}
	if c.Server.TempTTLMinutes == 0 {
		c.Server.TempTTLMinutes = 60
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 500
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 50
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.MaxTokens == 0 {
		c.RAG.MaxTokens = 512
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.01
	}
	if c.VAD.MinSilence == 0 {
		c.VAD.MinSilence = 0.5
	}
	if c.VAD.SampleRate == 0 {
		c.VAD.SampleRate = 16000
	}
	if c.Stream.BatchSize == 0 {
		c.Stream.BatchSize = 5
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "chromem"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./vectordb"
	}
	if c.Storage.VectorSize == 0 {
		c.Storage.VectorSize = 768
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "chromem":
	case "pgvector":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}
	if c.EmbedLLM.Model == "" {
		return fmt.Errorf("embed_llm.model is required")
	}
	if c.InferenceLLM.Model == "" {
		return fmt.Errorf("inference_llm.model is required")
	}
	return nil
}
