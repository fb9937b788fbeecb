// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type LookupConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	ResultLimit    int    `toml:"result_limit"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EstimationConfig holds the placeholder record substituted when the
// completion service returns unparseable estimation output.
type EstimationConfig struct {
	Quantity float64 `toml:"quantity"`
	Unit     string  `toml:"unit"`
	Calories float64 `toml:"calories"`
	ProteinG float64 `toml:"protein_g"`
	FatG     float64 `toml:"fat_g"`
	CarbsG   float64 `toml:"carbs_g"`
}

type Config struct {
	DBPath     string           `toml:"db_path"`
	LLM        LLMConfig        `toml:"llm"`
	Lookup     LookupConfig     `toml:"lookup"`
	Estimation EstimationConfig `toml:"estimation"`
}

func Default() Config {
	return Config{
		DBPath: "nutrition-agent.db",
		LLM: LLMConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          "amazon/nova-2-lite-v1:free",
			Temperature:    0,
			MaxTokens:      2000,
			TimeoutSeconds: 60,
		},
		Lookup: LookupConfig{
			BaseURL:        "https://api.nal.usda.gov/fdc/v1",
			ResultLimit:    5,
			TimeoutSeconds: 15,
		},
		Estimation: EstimationConfig{
			Quantity: 1,
			Unit:     "serving",
			Calories: 100,
			ProteinG: 5,
			FatG:     2,
			CarbsG:   10,
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file
// is not an error; the defaults are returned. API keys may also come from
// the OPENROUTER_API_KEY and FDC_API_KEY environment variables, which take
// precedence over the file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if key := os.Getenv("FDC_API_KEY"); key != "" {
		cfg.Lookup.APIKey = key
	}

	return cfg, nil
}
