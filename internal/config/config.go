package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	UserID        string        `yaml:"user_id"`
	DataDir       string        `yaml:"data_dir"`
	RetentionDays int           `yaml:"retention_days"`
	Sources       Sources       `yaml:"sources"`
	Ranking       Ranking       `yaml:"ranking"`
	Novelty       Novelty       `yaml:"novelty"`
	Consolidation Consolidation `yaml:"consolidation"`
	LLM           LLM           `yaml:"llm"`
	Server        Server        `yaml:"server"`
}

type Sources struct {
	Feeds     []Feed     `yaml:"feeds"`
	JSONLDirs []JSONLDir `yaml:"jsonl_dirs"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
	// FullContent fetches the linked page for entries with thin summaries
	// and extracts the article text.
	FullContent bool `yaml:"full_content"`
}

type JSONLDir struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

type Ranking struct {
	Weights Weights `yaml:"weights"`
	Caps    Caps    `yaml:"caps"`
}

type Weights struct {
	Version       string  `yaml:"version"`
	Relevance     float64 `yaml:"relevance"`
	Urgency       float64 `yaml:"urgency"`
	Credibility   float64 `yaml:"credibility"`
	Actionability float64 `yaml:"actionability"`
	Impact        float64 `yaml:"impact"`
}

type Caps struct {
	PerModule  int `yaml:"per_module"`
	Total      int `yaml:"total"`
	Highlights int `yaml:"highlights"`
}

type Novelty struct {
	Semantic            bool    `yaml:"semantic"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type Consolidation struct {
	TopicStep    float64 `yaml:"topic_step"`
	TrustAlpha   float64 `yaml:"trust_alpha"`
	VIPThreshold int     `yaml:"vip_threshold"`
}

type LLM struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	MaxTokens      int    `yaml:"max_tokens"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for daybrief.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "daybrief")
}

// DataDir returns the XDG data directory for daybrief.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "daybrief")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/daybrief/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'daybrief init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		UserID:        "default",
		RetentionDays: 90,
		Ranking: Ranking{
			Weights: Weights{
				Version:       "v1",
				Relevance:     0.45,
				Urgency:       0.20,
				Credibility:   0.15,
				Actionability: 0.10,
				Impact:        0.10,
			},
			Caps: Caps{PerModule: 8, Total: 30, Highlights: 5},
		},
		Novelty: Novelty{SimilarityThreshold: 0.85},
		Consolidation: Consolidation{
			TopicStep:    0.05,
			TrustAlpha:   0.2,
			VIPThreshold: 3,
		},
		LLM: LLM{
			Provider:       "ollama",
			Model:          "qwen2.5:7b",
			OllamaURL:      "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
			MaxTokens:      512,
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DataDir()
}

// DBPath returns the sqlite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "daybrief.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
