package sampler

import (
	"fmt"
)

// NextFunc computes model logits for the token at the given index of each
// sequence in the batch, using the tokens before it. The second return value
// is an optional model cache; models without one return nil and the decoder
// passes the full sequence on every call.
type NextFunc func(batch [][]int, index int) ([]Logits, any, error)

// Decoder runs the iterative decoding loop over a NextFunc. Sequences are
// fixed-length with pad tokens marking the positions still to be generated.
type Decoder struct {
	config SamplingConfig
	proc   *Processor
	padID  int
}

// NewDecoder creates a decoder for the given sampling configuration.
func NewDecoder(config SamplingConfig, padID int) (*Decoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	d := &Decoder{config: config, padID: padID}
	if config.Method != SamplingBeam {
		proc, err := NewProcessor(config)
		if err != nil {
			return nil, err
		}
		d.proc = proc
	}
	return d, nil
}

// Decode fills the pad positions of every sequence in the batch, one index
// at a time. The input sequences are modified in place and returned.
func (d *Decoder) Decode(next NextFunc, batch [][]int) ([][]int, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	if d.config.Method == SamplingBeam {
		for i, seq := range batch {
			out, err := d.beamDecode(next, seq)
			if err != nil {
				return nil, fmt.Errorf("beam decoding row %d: %w", i, err)
			}
			batch[i] = out
		}
		return batch, nil
	}

	seqLen := len(batch[0])
	start := d.firstPadIndex(batch)

	for index := start; index < seqLen; index++ {
		logits, _, err := next(batch, index)
		if err != nil {
			return nil, fmt.Errorf("next at index %d: %w", index, err)
		}
		if len(logits) != len(batch) {
			return nil, fmt.Errorf("next returned %d rows for batch of %d", len(logits), len(batch))
		}
		for row := range batch {
			if batch[row][index] != d.padID {
				// Prompt token, nothing to generate here.
				continue
			}
			chosen, err := d.proc.SelectToken(logits[row], generated(batch[row], index, d.padID), d.config)
			if err != nil {
				return nil, err
			}
			batch[row][index] = int(chosen.Token)
		}
	}
	return batch, nil
}

// firstPadIndex returns the earliest pad position across the batch, so
// generation starts right after the shortest prompt. Fully packed sequences
// yield seqLen and nothing is generated.
func (d *Decoder) firstPadIndex(batch [][]int) int {
	first := len(batch[0])
	for _, seq := range batch {
		for i, tok := range seq {
			if tok == d.padID {
				if i < first {
					first = i
				}
				break
			}
		}
	}
	if first < 1 {
		first = 1
	}
	return first
}

// generated collects the non-pad tokens before index, for the repetition
// penalty.
func generated(seq []int, index, padID int) []TokenID {
	out := make([]TokenID, 0, index)
	for _, tok := range seq[:index] {
		if tok != padID {
			out = append(out, TokenID(tok))
		}
	}
	return out
}
