// Package lm assembles the tokenizer, the transformer stack and the sampling
// policies into a trainable language model.
package lm

import (
	"fmt"

	"github.com/tektwister/bg_language_model/autograd"
	"github.com/tektwister/bg_language_model/sampler"
	"github.com/tektwister/bg_language_model/tokenizer"
	"github.com/tektwister/bg_language_model/transformer"
)

// GPTConfig holds configuration for the GPT model
type GPTConfig struct {
	VocabSize int `json:"vocab_size"` // Vocabulary size
	SeqLen    int `json:"seq_len"`    // Maximum sequence length
	NLayer    int `json:"n_layer"`    // Number of transformer blocks
	NHead     int `json:"n_head"`     // Number of attention heads
	NEmbd     int `json:"n_embd"`     // Embedding dimension
	FFDim     int `json:"ff_dim"`     // Feed-forward hidden dimension
}

// DefaultGPTConfig returns the configuration used for real training runs.
func DefaultGPTConfig() *GPTConfig {
	return &GPTConfig{
		VocabSize: 5000,
		SeqLen:    128,
		NLayer:    2,
		NHead:     4,
		NEmbd:     256,
		FFDim:     1024,
	}
}

// SmallGPTConfig returns a tiny configuration for tests and experiments.
func SmallGPTConfig() *GPTConfig {
	return &GPTConfig{
		VocabSize: 64,
		SeqLen:    16,
		NLayer:    1,
		NHead:     2,
		NEmbd:     16,
		FFDim:     32,
	}
}

// Validate checks the configuration for internal consistency.
func (c *GPTConfig) Validate() error {
	if c.VocabSize <= tokenizer.StartID {
		return fmt.Errorf("vocab size %d leaves no room for reserved tokens", c.VocabSize)
	}
	if c.SeqLen < 2 {
		return fmt.Errorf("seq len must be at least 2, got %d", c.SeqLen)
	}
	if c.NLayer < 1 || c.NHead < 1 || c.NEmbd < 1 || c.FFDim < 1 {
		return fmt.Errorf("layer, head and dimension counts must be positive")
	}
	if c.NEmbd%c.NHead != 0 {
		return fmt.Errorf("embedding dim %d not divisible by %d heads", c.NEmbd, c.NHead)
	}
	return nil
}

// GPT represents a decoder-only transformer language model.
type GPT struct {
	config   *GPTConfig
	tokenEmb *transformer.Embedding
	posEmb   *transformer.Embedding
	blocks   []*transformer.TransformerBlock
	lnF      *transformer.LayerNorm
	lmHead   *transformer.Linear
}

// NewGPT creates a new GPT model.
func NewGPT(config *GPTConfig) (*GPT, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	blocks := make([]*transformer.TransformerBlock, config.NLayer)
	for i := range blocks {
		blocks[i] = transformer.NewTransformerBlock(config.NEmbd, config.NHead, config.FFDim, true)
	}

	return &GPT{
		config:   config,
		tokenEmb: transformer.NewEmbedding(config.VocabSize, config.NEmbd),
		posEmb:   transformer.NewEmbedding(config.SeqLen, config.NEmbd),
		blocks:   blocks,
		lnF:      transformer.NewLayerNorm(config.NEmbd),
		lmHead:   transformer.NewLinear(config.NEmbd, config.VocabSize),
	}, nil
}

// Config returns the model configuration.
func (g *GPT) Config() *GPTConfig {
	return g.config
}

// Forward computes logits for every position of a token sequence.
// Input: []int of length <= SeqLen
// Output: (seqLen, vocabSize)
func (g *GPT) Forward(tokens []int) [][]*autograd.Value {
	// Token plus position embeddings.
	hidden := make([][]*autograd.Value, len(tokens))
	for i, id := range tokens {
		tokRow := g.tokenEmb.Weight[id]
		posRow := g.posEmb.Weight[i]
		vec := make([]*autograd.Value, g.config.NEmbd)
		for j := range vec {
			vec[j] = tokRow[j].Add(posRow[j])
		}
		hidden[i] = vec
	}

	for _, block := range g.blocks {
		hidden = block.Forward(hidden)
	}
	hidden = g.lnF.ForwardSeq(hidden)
	return g.lmHead.ForwardSeq(hidden)
}

// Loss computes the mean cross-entropy between predicted and target tokens.
// Positions whose target is the pad token are excluded.
func (g *GPT) Loss(inputs, targets []int) (*autograd.Value, error) {
	if len(inputs) != len(targets) {
		return nil, fmt.Errorf("inputs and targets differ in length: %d vs %d", len(inputs), len(targets))
	}

	logits := g.Forward(inputs)
	total := autograd.NewValue(0)
	counted := 0
	for i, target := range targets {
		if target == tokenizer.PadID {
			continue
		}
		probs := autograd.Softmax(logits[i])
		total = total.Add(probs[target].Log().Neg())
		counted++
	}
	if counted == 0 {
		return nil, fmt.Errorf("no non-pad targets in sequence")
	}
	return total.DivScalar(float64(counted)), nil
}

// Next implements the decoding callback used by the sampler package: it
// returns, for every sequence in the batch, the logits that predict the
// token at the given index. The model keeps no cache, so the second return
// value is always nil.
func (g *GPT) Next(batch [][]int, index int) ([]sampler.Logits, any, error) {
	if index < 1 {
		return nil, nil, fmt.Errorf("index must be at least 1, got %d", index)
	}
	if index > g.config.SeqLen {
		return nil, nil, fmt.Errorf("index %d exceeds max sequence length %d", index, g.config.SeqLen)
	}

	out := make([]sampler.Logits, len(batch))
	for row, seq := range batch {
		if len(seq) < index {
			return nil, nil, fmt.Errorf("row %d shorter than index %d", row, index)
		}
		logits := g.Forward(seq[:index])
		last := logits[index-1]
		rowLogits := make(sampler.Logits, len(last))
		for i, v := range last {
			rowLogits[i] = float32(v.Data())
		}
		out[row] = rowLogits
	}
	return out, nil, nil
}

// Parameters returns all trainable parameters.
func (g *GPT) Parameters() []*autograd.Value {
	modules := []autograd.Module{g.tokenEmb, g.posEmb}
	for _, block := range g.blocks {
		modules = append(modules, block)
	}
	modules = append(modules, g.lnF, g.lmHead)

	var params []*autograd.Value
	for _, m := range modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// ZeroGrad resets all parameter gradients.
func (g *GPT) ZeroGrad() {
	for _, p := range g.Parameters() {
		p.ZeroGrad()
	}
}

// NumParams returns the total number of trainable parameters.
func (g *GPT) NumParams() int {
	return len(g.Parameters())
}
