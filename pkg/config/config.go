// Package config loads application settings from the environment, with
// optional .env file support.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// AppConfig holds the file paths and defaults shared by the CLI tools.
type AppConfig struct {
	CorpusPath     string
	TokenizerPath  string
	CheckpointPath string

	VocabSize    int
	SeqLen       int
	LearningRate float64
	Epochs       int
	BatchSize    int

	SamplingMethod string
	Temperature    float64
	TopK           int
	TopP           float64
	BeamSize       int
	Seed           int64
}

// Load reads the configuration from environment variables.
// It attempts to find a .env file in the current or parent directories.
func Load() (*AppConfig, error) {
	_ = loadEnvFile()

	return &AppConfig{
		CorpusPath:     getEnv("BGLM_CORPUS", "corpus.txt"),
		TokenizerPath:  getEnv("BGLM_TOKENIZER", "tokenizer.json"),
		CheckpointPath: getEnv("BGLM_CHECKPOINT", "model.json"),

		VocabSize:    getEnvInt("BGLM_VOCAB_SIZE", 5000),
		SeqLen:       getEnvInt("BGLM_SEQ_LEN", 128),
		LearningRate: getEnvFloat("BGLM_LEARNING_RATE", 1e-3),
		Epochs:       getEnvInt("BGLM_EPOCHS", 10),
		BatchSize:    getEnvInt("BGLM_BATCH_SIZE", 16),

		SamplingMethod: getEnv("BGLM_SAMPLING", "top_k"),
		Temperature:    getEnvFloat("BGLM_TEMPERATURE", 1.0),
		TopK:           getEnvInt("BGLM_TOP_K", 10),
		TopP:           getEnvFloat("BGLM_TOP_P", 0.9),
		BeamSize:       getEnvInt("BGLM_BEAM_SIZE", 5),
		Seed:           int64(getEnvInt("BGLM_SEED", 0)),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// loadEnvFile attempts to look up until it finds a .env file
func loadEnvFile() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	// Look up to 5 levels
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return godotenv.Load(envPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil
}
