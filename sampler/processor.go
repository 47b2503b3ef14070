package sampler

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Processor selects tokens from logits using a sampling strategy.
type Processor struct {
	sampler Sampler
	rng     *rand.Rand
}

// NewProcessor creates a processor for the given configuration.
func NewProcessor(config SamplingConfig) (*Processor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s, err := NewSampler(config.Method)
	if err != nil {
		return nil, err
	}
	return &Processor{
		sampler: s,
		rng:     rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// SelectToken picks the next token from raw logits. Previously generated
// tokens are passed in for the repetition penalty.
func (p *Processor) SelectToken(logits Logits, previous []TokenID, config SamplingConfig) (TokenScore, error) {
	penalized := ApplyRepetitionPenalty(logits, previous, config.RepetitionPenalty)

	result, err := p.sampler.Sample(penalized, config)
	if err != nil {
		return TokenScore{}, fmt.Errorf("sampling failed: %w", err)
	}

	if config.Method == SamplingGreedy {
		return p.selectGreedy(result)
	}
	return p.selectMultinomial(result)
}

// selectGreedy selects the token with highest probability.
func (p *Processor) selectGreedy(result *ProcessingResult) (TokenScore, error) {
	if len(result.Probabilities) == 0 {
		return TokenScore{}, fmt.Errorf("no valid tokens available")
	}
	idx := floats.MaxIdx(result.Probabilities)
	return TokenScore{
		Token: TokenID(idx),
		Prob:  result.Probabilities[idx],
	}, nil
}

// selectMultinomial samples a token from the filtered distribution.
func (p *Processor) selectMultinomial(result *ProcessingResult) (TokenScore, error) {
	if len(result.ValidTokens) == 0 {
		return TokenScore{}, fmt.Errorf("no valid tokens available")
	}

	totalProb := 0.0
	cumProbs := make([]float64, len(result.ValidTokens))
	for i, token := range result.ValidTokens {
		totalProb += result.Probabilities[token]
		cumProbs[i] = totalProb
	}

	r := p.rng.Float64() * totalProb
	for i, cumProb := range cumProbs {
		if r <= cumProb {
			token := result.ValidTokens[i]
			return TokenScore{Token: token, Prob: result.Probabilities[token]}, nil
		}
	}

	// Fallback to the most likely valid token.
	token := result.ValidTokens[0]
	return TokenScore{Token: token, Prob: result.Probabilities[token]}, nil
}

// TopTokens returns the top n tokens by probability.
func TopTokens(probabilities Probabilities, n int) []TokenScore {
	scores := make([]TokenScore, len(probabilities))
	for i, prob := range probabilities {
		scores[i] = TokenScore{Token: TokenID(i), Prob: prob}
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Prob > scores[j].Prob
	})
	if n > len(scores) {
		n = len(scores)
	}
	return scores[:n]
}
