package lm

import (
	"fmt"
	"math"

	"github.com/tektwister/bg_language_model/sampler"
	"github.com/tektwister/bg_language_model/tokenizer"
)

// ModelConfig holds configuration for the complete language model.
type ModelConfig struct {
	GPTConfig *GPTConfig             `json:"gpt_config"`
	Sampling  sampler.SamplingConfig `json:"sampling"`
}

// NewModelConfig returns a model configuration with sensible defaults.
func NewModelConfig() *ModelConfig {
	return &ModelConfig{
		GPTConfig: DefaultGPTConfig(),
		Sampling:  sampler.NewSamplingConfig(sampler.SamplingTopK),
	}
}

// LanguageModel combines a tokenizer backend, a GPT network and a decoding
// policy.
type LanguageModel struct {
	gpt    *GPT
	tok    tokenizer.Tokenizer
	packer *tokenizer.Packer
	config *ModelConfig
}

// NewLanguageModel creates a new language model with an untrained tokenizer.
func NewLanguageModel(config *ModelConfig) (*LanguageModel, error) {
	gpt, err := NewGPT(config.GPTConfig)
	if err != nil {
		return nil, err
	}
	return &LanguageModel{
		gpt:    gpt,
		tok:    tokenizer.NewWordPiece(),
		packer: tokenizer.NewPacker(config.GPTConfig.SeqLen),
		config: config,
	}, nil
}

// NewLanguageModelFrom assembles a language model from an existing network
// and tokenizer, for loading saved state.
func NewLanguageModelFrom(gpt *GPT, tok tokenizer.Tokenizer, sampling sampler.SamplingConfig) (*LanguageModel, error) {
	if tok.VocabSize() > gpt.Config().VocabSize {
		return nil, fmt.Errorf("tokenizer vocab %d exceeds model vocab %d",
			tok.VocabSize(), gpt.Config().VocabSize)
	}
	return &LanguageModel{
		gpt:    gpt,
		tok:    tok,
		packer: tokenizer.NewPacker(gpt.Config().SeqLen),
		config: &ModelConfig{GPTConfig: gpt.Config(), Sampling: sampling},
	}, nil
}

// TrainTokenizer trains the tokenizer on the given text, targeting the
// model's vocabulary size.
func (lm *LanguageModel) TrainTokenizer(text string) error {
	return lm.tok.Train(text, lm.config.GPTConfig.VocabSize)
}

// SetTokenizer replaces the tokenizer backend, for loading a previously
// trained one.
func (lm *LanguageModel) SetTokenizer(tok tokenizer.Tokenizer) error {
	if tok.VocabSize() > lm.config.GPTConfig.VocabSize {
		return fmt.Errorf("tokenizer vocab %d exceeds model vocab %d",
			tok.VocabSize(), lm.config.GPTConfig.VocabSize)
	}
	lm.tok = tok
	return nil
}

// Tokenizer returns the model's tokenizer.
func (lm *LanguageModel) Tokenizer() tokenizer.Tokenizer {
	return lm.tok
}

// GPT returns the underlying transformer network.
func (lm *LanguageModel) GPT() *GPT {
	return lm.gpt
}

// Config returns the model configuration.
func (lm *LanguageModel) Config() *ModelConfig {
	return lm.config
}

// Encode converts text to token IDs.
func (lm *LanguageModel) Encode(text string) []int {
	return lm.tok.Encode(text)
}

// Decode converts token IDs back to text.
func (lm *LanguageModel) Decode(tokens []int) string {
	return lm.tok.Decode(tokens)
}

// GenerateText generates a continuation of the prompt using the model's
// configured decoding policy.
func (lm *LanguageModel) GenerateText(prompt string) (string, error) {
	return lm.GenerateWith(prompt, lm.config.Sampling)
}

// GenerateWith generates text with an explicit sampling configuration.
func (lm *LanguageModel) GenerateWith(prompt string, config sampler.SamplingConfig) (string, error) {
	ids := lm.packer.Pack(lm.Encode(prompt))

	decoder, err := sampler.NewDecoder(config, tokenizer.PadID)
	if err != nil {
		return "", err
	}
	out, err := decoder.Decode(lm.gpt.Next, [][]int{ids})
	if err != nil {
		return "", fmt.Errorf("decoding failed: %w", err)
	}
	return lm.Decode(out[0]), nil
}

// Next exposes the model's decoding callback.
func (lm *LanguageModel) Next(batch [][]int, index int) ([]sampler.Logits, any, error) {
	return lm.gpt.Next(batch, index)
}

// SequenceLoss computes the cross-entropy loss of the model on one line of
// text after packing it to the training sequence length.
func (lm *LanguageModel) SequenceLoss(text string) (float64, error) {
	ids := lm.Encode(text)
	if len(ids) == 0 {
		return 0, fmt.Errorf("empty text after tokenization")
	}
	features, labels := lm.packer.PackPair(ids)
	loss, err := lm.gpt.Loss(features, labels)
	if err != nil {
		return 0, err
	}
	return loss.Data(), nil
}

// Perplexity returns exp of the mean per-token cross-entropy on the text.
func (lm *LanguageModel) Perplexity(text string) (float64, error) {
	loss, err := lm.SequenceLoss(text)
	if err != nil {
		return 0, err
	}
	return math.Exp(loss), nil
}
