package sampler

import (
	"fmt"
	"math"
	"sort"
)

// Sampler defines the interface for per-step token sampling strategies.
type Sampler interface {
	// Name returns the name of the sampling strategy.
	Name() string

	// Sample filters and rescales the given logits according to the
	// sampling method.
	Sample(logits Logits, config SamplingConfig) (*ProcessingResult, error)
}

// GreedySampler implements greedy (argmax) sampling.
type GreedySampler struct{}

func (s *GreedySampler) Name() string {
	return "greedy"
}

func (s *GreedySampler) Sample(logits Logits, config SamplingConfig) (*ProcessingResult, error) {
	if len(logits) == 0 {
		return nil, fmt.Errorf("empty logits")
	}

	scaledLogits := ApplyTemperature(logits, config.Temperature)

	// For greedy, all tokens are valid
	validTokens := make([]TokenID, len(logits))
	for i := range validTokens {
		validTokens[i] = TokenID(i)
	}

	return &ProcessingResult{
		FilteredLogits: scaledLogits,
		Probabilities:  Softmax(scaledLogits),
		ValidTokens:    validTokens,
	}, nil
}

// RandomSampler implements temperature-based multinomial sampling over the
// full vocabulary.
type RandomSampler struct{}

func (s *RandomSampler) Name() string {
	return "random"
}

func (s *RandomSampler) Sample(logits Logits, config SamplingConfig) (*ProcessingResult, error) {
	if len(logits) == 0 {
		return nil, fmt.Errorf("empty logits")
	}

	scaledLogits := ApplyTemperature(logits, config.Temperature)

	validTokens := make([]TokenID, len(logits))
	for i := range validTokens {
		validTokens[i] = TokenID(i)
	}

	return &ProcessingResult{
		FilteredLogits: scaledLogits,
		Probabilities:  Softmax(scaledLogits),
		ValidTokens:    validTokens,
	}, nil
}

// TopKSampler implements top-k sampling.
type TopKSampler struct{}

func (s *TopKSampler) Name() string {
	return "top_k"
}

func (s *TopKSampler) Sample(logits Logits, config SamplingConfig) (*ProcessingResult, error) {
	if len(logits) == 0 {
		return nil, fmt.Errorf("empty logits")
	}

	scaledLogits := ApplyTemperature(logits, config.Temperature)
	filteredLogits, validTokens := filterTopK(scaledLogits, config.TopK)

	return &ProcessingResult{
		FilteredLogits: filteredLogits,
		Probabilities:  Softmax(filteredLogits),
		ValidTokens:    validTokens,
	}, nil
}

func filterTopK(logits Logits, k int) (Logits, []TokenID) {
	if k <= 0 || k > len(logits) {
		k = len(logits)
	}

	type tokenScore struct {
		token TokenID
		score float32
	}
	tokenScores := make([]tokenScore, len(logits))
	for i, score := range logits {
		tokenScores[i] = tokenScore{token: TokenID(i), score: score}
	}
	sort.Slice(tokenScores, func(i, j int) bool {
		return tokenScores[i].score > tokenScores[j].score
	})

	filteredLogits := make(Logits, len(logits))
	validTokens := make([]TokenID, k)
	for i := 0; i < k; i++ {
		token := tokenScores[i].token
		validTokens[i] = token
		filteredLogits[token] = logits[token]
	}
	for i := k; i < len(tokenScores); i++ {
		filteredLogits[tokenScores[i].token] = float32(math.Inf(-1))
	}
	return filteredLogits, validTokens
}

// TopPSampler implements nucleus (top-p) sampling.
type TopPSampler struct{}

func (s *TopPSampler) Name() string {
	return "top_p"
}

func (s *TopPSampler) Sample(logits Logits, config SamplingConfig) (*ProcessingResult, error) {
	if len(logits) == 0 {
		return nil, fmt.Errorf("empty logits")
	}

	scaledLogits := ApplyTemperature(logits, config.Temperature)
	filteredLogits, validTokens := filterTopP(scaledLogits, config.TopP)

	return &ProcessingResult{
		FilteredLogits: filteredLogits,
		Probabilities:  Softmax(filteredLogits),
		ValidTokens:    validTokens,
	}, nil
}

func filterTopP(logits Logits, p float64) (Logits, []TokenID) {
	probabilities := Softmax(logits)

	type tokenProb struct {
		token TokenID
		prob  float64
	}
	tokenProbs := make([]tokenProb, len(probabilities))
	for i, prob := range probabilities {
		tokenProbs[i] = tokenProb{token: TokenID(i), prob: prob}
	}
	sort.Slice(tokenProbs, func(i, j int) bool {
		return tokenProbs[i].prob > tokenProbs[j].prob
	})

	// Keep the smallest set of tokens whose cumulative probability reaches p.
	kept := make(map[TokenID]bool, len(tokenProbs))
	var validTokens []TokenID
	cumProb := 0.0
	for _, tp := range tokenProbs {
		validTokens = append(validTokens, tp.token)
		kept[tp.token] = true
		cumProb += tp.prob
		if cumProb >= p {
			break
		}
	}

	filteredLogits := make(Logits, len(logits))
	for i := range logits {
		if kept[TokenID(i)] {
			filteredLogits[i] = logits[i]
		} else {
			filteredLogits[i] = float32(math.Inf(-1))
		}
	}
	return filteredLogits, validTokens
}
