package sampler

import (
	"fmt"
	"math"
	"sort"
)

// BeamCandidate represents a candidate sequence in beam search.
type BeamCandidate struct {
	Tokens []int   `json:"tokens"`
	Score  float64 `json:"score"` // Cumulative log probability
}

// beamDecode fills the pad positions of one sequence by beam search,
// keeping the BeamSize highest-scoring candidates at every step and
// returning the best one.
func (d *Decoder) beamDecode(next NextFunc, seq []int) ([]int, error) {
	seqLen := len(seq)
	start := d.firstPadIndex([][]int{seq})

	beams := []BeamCandidate{{Tokens: append([]int(nil), seq...), Score: 0}}

	for index := start; index < seqLen; index++ {
		batch := make([][]int, len(beams))
		for i, b := range beams {
			batch[i] = b.Tokens
		}
		logits, _, err := next(batch, index)
		if err != nil {
			return nil, fmt.Errorf("next at index %d: %w", index, err)
		}
		if len(logits) != len(beams) {
			return nil, fmt.Errorf("next returned %d rows for %d beams", len(logits), len(beams))
		}

		// Expand each beam with its BeamSize most likely continuations.
		var candidates []BeamCandidate
		for i, b := range beams {
			probs := Softmax(ApplyTemperature(logits[i], d.config.Temperature))
			for _, ts := range TopTokens(probs, d.config.BeamSize) {
				if ts.Prob <= 0 {
					continue
				}
				tokens := append([]int(nil), b.Tokens...)
				tokens[index] = int(ts.Token)
				candidates = append(candidates, BeamCandidate{
					Tokens: tokens,
					Score:  b.Score + math.Log(ts.Prob),
				})
			}
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("no beam candidates at index %d", index)
		}

		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})
		if len(candidates) > d.config.BeamSize {
			candidates = candidates[:d.config.BeamSize]
		}
		beams = candidates
	}

	best := beams[0]
	for _, b := range beams[1:] {
		if b.Score > best.Score {
			best = b
		}
	}
	return best.Tokens, nil
}
