package lm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/tektwister/bg_language_model/autograd"
	"github.com/tektwister/bg_language_model/sampler"
)

// TrainingConfig holds training configuration.
type TrainingConfig struct {
	LearningRate   float64 `json:"learning_rate"`
	Epochs         int     `json:"epochs"`
	BatchSize      int     `json:"batch_size"`
	Seed           int64   `json:"seed"`
	DecayLR        bool    `json:"decay_lr"`        // Linear decay to zero over training
	LogInterval    int     `json:"log_interval"`    // Log every N steps, 0 disables
	SampleInterval int     `json:"sample_interval"` // Generate a sample every N steps, 0 disables
	SamplePrompt   string  `json:"sample_prompt"`
}

// NewTrainingConfig returns a training configuration with sensible defaults.
func NewTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		LearningRate:   1e-3,
		Epochs:         10,
		BatchSize:      16,
		DecayLR:        true,
		LogInterval:    10,
		SampleInterval: 0,
		SamplePrompt:   "котката",
	}
}

// TrainStats describes one optimization step.
type TrainStats struct {
	Step       int
	Epoch      int
	Loss       float64
	Perplexity float64
	LR         float64
}

// Trainer runs the optimization loop for a language model.
type Trainer struct {
	model  *LanguageModel
	opt    *autograd.Adam
	config *TrainingConfig
}

// NewTrainer creates a new trainer.
func NewTrainer(model *LanguageModel, config *TrainingConfig) *Trainer {
	return &Trainer{
		model:  model,
		opt:    autograd.NewAdam(model.GPT().Parameters(), config.LearningRate),
		config: config,
	}
}

// Train fits the model on the dataset. The tokenizer is trained first if it
// only contains the reserved tokens. The optional callback receives stats
// after every step.
func (t *Trainer) Train(ds *Dataset, callback func(TrainStats)) error {
	if ds.Len() == 0 {
		return fmt.Errorf("empty dataset")
	}

	if t.model.Tokenizer().VocabSize() <= 3 {
		fmt.Printf("Training tokenizer on %d lines\n", ds.Len())
		if err := t.model.TrainTokenizer(ds.Text()); err != nil {
			return fmt.Errorf("failed to train tokenizer: %w", err)
		}
		fmt.Printf("Tokenizer trained. Vocab size: %d\n", t.model.Tokenizer().VocabSize())
	}

	batchesPerEpoch := (ds.Len() + t.config.BatchSize - 1) / t.config.BatchSize
	totalSteps := t.config.Epochs * batchesPerEpoch
	step := 0
	var window []float64

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		ds.Shuffle(t.config.Seed + int64(epoch))

		for _, batch := range ds.Batches(t.config.BatchSize) {
			loss, err := t.batchLoss(batch)
			if err != nil {
				return err
			}
			loss.Backward()

			lr := t.config.LearningRate
			if t.config.DecayLR {
				lr *= 1 - float64(step)/float64(totalSteps)
			}
			t.opt.StepLR(lr)
			step++

			stats := TrainStats{
				Step:       step,
				Epoch:      epoch,
				Loss:       loss.Data(),
				Perplexity: math.Exp(loss.Data()),
				LR:         lr,
			}
			if callback != nil {
				callback(stats)
			}

			window = append(window, stats.Loss)
			if t.config.LogInterval > 0 && step%t.config.LogInterval == 0 {
				fmt.Printf("Step %d/%d (epoch %d): loss = %.4f, perplexity = %.2f\n",
					step, totalSteps, epoch, stat.Mean(window, nil), math.Exp(stat.Mean(window, nil)))
				window = window[:0]
			}
			if t.config.SampleInterval > 0 && step%t.config.SampleInterval == 0 {
				t.generateSample()
			}
		}
	}

	fmt.Println("Training completed")
	return nil
}

// batchLoss averages the sequence loss over the usable lines of a batch.
func (t *Trainer) batchLoss(lines []string) (*autograd.Value, error) {
	total := autograd.NewValue(0)
	counted := 0
	for _, line := range lines {
		ids := t.model.Encode(line)
		if len(ids) == 0 {
			continue
		}
		features, labels := t.model.packer.PackPair(ids)
		loss, err := t.model.GPT().Loss(features, labels)
		if err != nil {
			return nil, err
		}
		total = total.Add(loss)
		counted++
	}
	if counted == 0 {
		return nil, fmt.Errorf("batch has no tokenizable lines")
	}
	return total.DivScalar(float64(counted)), nil
}

// Evaluate computes mean loss and perplexity over a dataset without
// updating the model.
func (t *Trainer) Evaluate(ds *Dataset) (loss, perplexity float64, err error) {
	var losses []float64
	for _, line := range ds.Lines {
		l, err := t.model.SequenceLoss(line)
		if err != nil {
			continue
		}
		losses = append(losses, l)
	}
	if len(losses) == 0 {
		return 0, 0, fmt.Errorf("no usable lines in dataset")
	}
	mean := stat.Mean(losses, nil)
	return mean, math.Exp(mean), nil
}

// generateSample prints a short greedy sample to show training progress.
func (t *Trainer) generateSample() {
	config := sampler.NewSamplingConfig(sampler.SamplingGreedy)
	text, err := t.model.GenerateWith(t.config.SamplePrompt, config)
	if err != nil {
		fmt.Printf("Sample generation failed: %v\n", err)
		return
	}
	fmt.Printf("Sample: %q\n", text)
}
