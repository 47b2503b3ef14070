// Command bglm trains and runs a small Bulgarian GPT language model.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tektwister/bg_language_model/lm"
	"github.com/tektwister/bg_language_model/pkg/config"
	"github.com/tektwister/bg_language_model/sampler"
	"github.com/tektwister/bg_language_model/tokenizer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bglm",
		Short: "Train and sample a small Bulgarian GPT language model",
	}
	rootCmd.AddCommand(newTrainCmd(), newGenerateCmd(), newTokenizeCmd(), newTrainTokenizerCmd())
	return rootCmd
}

func newTrainCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.AppConfig{}
	}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the tokenizer and model on a line-oriented corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := lm.LoadDataset(cfg.CorpusPath, 3)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d lines from %s\n", ds.Len(), cfg.CorpusPath)

			modelConfig := &lm.ModelConfig{
				GPTConfig: &lm.GPTConfig{
					VocabSize: cfg.VocabSize,
					SeqLen:    cfg.SeqLen,
					NLayer:    2,
					NHead:     4,
					NEmbd:     256,
					FFDim:     1024,
				},
				Sampling: samplingFromConfig(cfg),
			}
			model, err := lm.NewLanguageModel(modelConfig)
			if err != nil {
				return err
			}

			if _, statErr := os.Stat(cfg.TokenizerPath); statErr == nil {
				tok, err := tokenizer.Load(cfg.TokenizerPath)
				if err != nil {
					return err
				}
				if err := model.SetTokenizer(tok); err != nil {
					return err
				}
				fmt.Printf("Loaded tokenizer from %s (vocab %d)\n", cfg.TokenizerPath, tok.VocabSize())
			}

			trainConfig := lm.NewTrainingConfig()
			trainConfig.LearningRate = cfg.LearningRate
			trainConfig.Epochs = cfg.Epochs
			trainConfig.BatchSize = cfg.BatchSize
			trainConfig.Seed = cfg.Seed
			trainConfig.SampleInterval = 100

			trainer := lm.NewTrainer(model, trainConfig)
			if err := trainer.Train(ds, nil); err != nil {
				return err
			}

			if err := model.Tokenizer().Save(cfg.TokenizerPath); err != nil {
				return fmt.Errorf("save tokenizer: %w", err)
			}
			if err := model.GPT().SaveCheckpoint(cfg.CheckpointPath); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
			fmt.Printf("Saved tokenizer to %s and model to %s\n", cfg.TokenizerPath, cfg.CheckpointPath)
			return nil
		},
	}

	bindCommonFlags(cmd, cfg)
	cmd.Flags().IntVar(&cfg.VocabSize, "vocab-size", cfg.VocabSize, "tokenizer and model vocabulary size")
	cmd.Flags().IntVar(&cfg.SeqLen, "seq-len", cfg.SeqLen, "training sequence length")
	cmd.Flags().Float64Var(&cfg.LearningRate, "lr", cfg.LearningRate, "Adam learning rate")
	cmd.Flags().IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "number of passes over the corpus")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "lines per optimization step")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.AppConfig{}
	}
	var prompt string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate text from a trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := loadModel(cfg)
			if err != nil {
				return err
			}

			text, err := model.GenerateWith(prompt, samplingFromConfig(cfg))
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}

	bindCommonFlags(cmd, cfg)
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt to continue")
	cmd.Flags().StringVar(&cfg.SamplingMethod, "method", cfg.SamplingMethod, "decoding policy: greedy, random, top_k, top_p, beam")
	cmd.Flags().Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "sampling temperature")
	cmd.Flags().IntVar(&cfg.TopK, "top-k", cfg.TopK, "top-k cutoff")
	cmd.Flags().Float64Var(&cfg.TopP, "top-p", cfg.TopP, "nucleus probability mass")
	cmd.Flags().IntVar(&cfg.BeamSize, "beam-size", cfg.BeamSize, "beam width for beam search")
	return cmd
}

func newTokenizeCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.AppConfig{}
	}

	cmd := &cobra.Command{
		Use:   "tokenize [text]",
		Short: "Show the sub-word segmentation of a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenizer.Load(cfg.TokenizerPath)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			ids := tok.Encode(text)
			pieces := make([]string, len(ids))
			for i, id := range ids {
				pieces[i] = tok.IDToToken(id)
			}
			fmt.Printf("ids:    %v\n", ids)
			fmt.Printf("pieces: %s\n", strings.Join(pieces, " "))
			return nil
		},
	}

	bindCommonFlags(cmd, cfg)
	return cmd
}

func newTrainTokenizerCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.AppConfig{}
	}
	var backend string

	cmd := &cobra.Command{
		Use:   "train-tokenizer",
		Short: "Train only the sub-word tokenizer on a corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch backend {
			case "wordpiece":
				ds, err := lm.LoadDataset(cfg.CorpusPath, 3)
				if err != nil {
					return err
				}
				wp := tokenizer.NewWordPiece()
				if err := wp.Train(ds.Text(), cfg.VocabSize); err != nil {
					return err
				}
				if err := wp.Save(cfg.TokenizerPath); err != nil {
					return err
				}
				fmt.Printf("Trained WordPiece vocab of %d, saved to %s\n", wp.VocabSize(), cfg.TokenizerPath)
			case "bpe":
				sw, err := tokenizer.TrainOrLoadSubword(cfg.CorpusPath, cfg.TokenizerPath, cfg.VocabSize)
				if err != nil {
					return err
				}
				fmt.Printf("Trained BPE vocab of %d, saved next to %s\n", sw.VocabSize(), cfg.TokenizerPath)
			default:
				return fmt.Errorf("unknown backend %q, want wordpiece or bpe", backend)
			}
			return nil
		},
	}

	bindCommonFlags(cmd, cfg)
	cmd.Flags().IntVar(&cfg.VocabSize, "vocab-size", cfg.VocabSize, "target vocabulary size")
	cmd.Flags().StringVar(&backend, "backend", "wordpiece", "tokenizer backend: wordpiece or bpe")
	return cmd
}

func bindCommonFlags(cmd *cobra.Command, cfg *config.AppConfig) {
	cmd.Flags().StringVar(&cfg.CorpusPath, "corpus", cfg.CorpusPath, "line-oriented training corpus")
	cmd.Flags().StringVar(&cfg.TokenizerPath, "tokenizer", cfg.TokenizerPath, "tokenizer vocabulary file")
	cmd.Flags().StringVar(&cfg.CheckpointPath, "checkpoint", cfg.CheckpointPath, "model checkpoint file")
}

func loadModel(cfg *config.AppConfig) (*lm.LanguageModel, error) {
	tok, err := tokenizer.Load(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	gpt, err := lm.LoadGPT(cfg.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return lm.NewLanguageModelFrom(gpt, tok, samplingFromConfig(cfg))
}

func samplingFromConfig(cfg *config.AppConfig) sampler.SamplingConfig {
	sc := sampler.NewSamplingConfig(sampler.SamplingMethod(cfg.SamplingMethod))
	sc.Temperature = cfg.Temperature
	sc.TopK = cfg.TopK
	sc.TopP = cfg.TopP
	sc.BeamSize = cfg.BeamSize
	sc.Seed = cfg.Seed
	return sc
}
