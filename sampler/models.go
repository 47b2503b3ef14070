// Package sampler turns model logits into token choices. It implements the
// decoding policies used for text generation: greedy, random, top-k, top-p
// and beam search.
package sampler

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Logits represent raw model outputs before softmax.
type Logits []float32

// Probabilities represent normalized probability distributions after softmax.
type Probabilities []float64

// TokenID represents a token identifier in the vocabulary.
type TokenID int

// TokenScore represents a token with its probability.
type TokenScore struct {
	Token TokenID `json:"token"`
	Prob  float64 `json:"prob"`
}

// SamplingMethod defines different token sampling strategies.
type SamplingMethod string

const (
	SamplingGreedy SamplingMethod = "greedy"
	SamplingRandom SamplingMethod = "random"
	SamplingTopK   SamplingMethod = "top_k"
	SamplingTopP   SamplingMethod = "top_p"
	SamplingBeam   SamplingMethod = "beam"
)

// SamplingConfig defines parameters for token sampling.
type SamplingConfig struct {
	Method            SamplingMethod `json:"method"`
	Temperature       float64        `json:"temperature,omitempty"`        // For random sampling
	TopK              int            `json:"top_k,omitempty"`              // For top-k sampling
	TopP              float64        `json:"top_p,omitempty"`              // For nucleus (top-p) sampling
	BeamSize          int            `json:"beam_size,omitempty"`          // For beam search
	RepetitionPenalty float64        `json:"repetition_penalty,omitempty"` // Penalty for repeating tokens
	Seed              int64          `json:"seed,omitempty"`               // Seed for reproducible sampling
}

// NewSamplingConfig creates a default sampling configuration for a method.
func NewSamplingConfig(method SamplingMethod) SamplingConfig {
	config := SamplingConfig{
		Method:            method,
		Temperature:       1.0,
		TopK:              10,
		TopP:              0.9,
		BeamSize:          5,
		RepetitionPenalty: 1.0,
	}
	if method == SamplingGreedy {
		config.Temperature = 0.0
	}
	return config
}

// Validate checks if the sampling configuration is valid.
func (c SamplingConfig) Validate() error {
	switch c.Method {
	case SamplingGreedy, SamplingRandom, SamplingTopK, SamplingTopP, SamplingBeam:
	default:
		return NewValidationError("unknown sampling method: " + string(c.Method))
	}
	if c.Temperature < 0 {
		return NewValidationError("temperature must be non-negative")
	}
	if c.TopK < 0 {
		return NewValidationError("top_k must be non-negative")
	}
	if c.TopP < 0 || c.TopP > 1 {
		return NewValidationError("top_p must be between 0 and 1")
	}
	if c.BeamSize < 1 {
		return NewValidationError("beam_size must be at least 1")
	}
	if c.RepetitionPenalty <= 0 {
		return NewValidationError("repetition_penalty must be positive")
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// ProcessingResult represents the intermediate results of logit processing.
type ProcessingResult struct {
	FilteredLogits Logits        `json:"filtered_logits"`
	Probabilities  Probabilities `json:"probabilities"`
	ValidTokens    []TokenID     `json:"valid_tokens"`
}

// Softmax converts logits to a probability distribution, subtracting the max
// logit for numerical stability.
func Softmax(logits Logits) Probabilities {
	if len(logits) == 0 {
		return Probabilities{}
	}

	scores := make([]float64, len(logits))
	for i, l := range logits {
		scores[i] = float64(l)
	}
	maxLogit := floats.Max(scores)

	expValues := make([]float64, len(scores))
	for i, s := range scores {
		expValues[i] = math.Exp(s - maxLogit)
	}
	sum := floats.Sum(expValues)

	probs := make(Probabilities, len(expValues))
	for i, e := range expValues {
		probs[i] = e / sum
	}
	return probs
}

// ApplyTemperature applies temperature scaling to logits. A temperature of
// zero leaves the logits unchanged (greedy selection).
func ApplyTemperature(logits Logits, temperature float64) Logits {
	result := make(Logits, len(logits))
	if temperature == 0.0 {
		copy(result, logits)
		return result
	}
	for i, logit := range logits {
		result[i] = float32(float64(logit) / temperature)
	}
	return result
}

// ApplyRepetitionPenalty divides positive logits of already generated tokens
// by the penalty and multiplies negative ones, discouraging repetition.
func ApplyRepetitionPenalty(logits Logits, previousTokens []TokenID, penalty float64) Logits {
	result := make(Logits, len(logits))
	copy(result, logits)
	if penalty == 1.0 {
		return result
	}
	for _, tok := range previousTokens {
		if int(tok) < 0 || int(tok) >= len(result) {
			continue
		}
		if result[tok] > 0 {
			result[tok] = float32(float64(result[tok]) / penalty)
		} else {
			result[tok] = float32(float64(result[tok]) * penalty)
		}
	}
	return result
}
