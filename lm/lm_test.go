package lm

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tektwister/bg_language_model/sampler"
	"github.com/tektwister/bg_language_model/tokenizer"
)

func smallModel(t *testing.T) *LanguageModel {
	t.Helper()
	config := &ModelConfig{
		GPTConfig: SmallGPTConfig(),
		Sampling:  sampler.NewSamplingConfig(sampler.SamplingGreedy),
	}
	model, err := NewLanguageModel(config)
	if err != nil {
		t.Fatalf("NewLanguageModel failed: %v", err)
	}
	if err := model.TrainTokenizer(SampleCorpus); err != nil {
		t.Fatalf("TrainTokenizer failed: %v", err)
	}
	return model
}

func TestGPTConfigValidate(t *testing.T) {
	bad := []*GPTConfig{
		{VocabSize: 2, SeqLen: 16, NLayer: 1, NHead: 2, NEmbd: 16, FFDim: 32},
		{VocabSize: 64, SeqLen: 1, NLayer: 1, NHead: 2, NEmbd: 16, FFDim: 32},
		{VocabSize: 64, SeqLen: 16, NLayer: 1, NHead: 3, NEmbd: 16, FFDim: 32},
		{VocabSize: 64, SeqLen: 16, NLayer: 0, NHead: 2, NEmbd: 16, FFDim: 32},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("Config %d: expected validation error", i)
		}
	}
	if err := SmallGPTConfig().Validate(); err != nil {
		t.Errorf("Expected small config valid, got %v", err)
	}
}

func TestForwardShape(t *testing.T) {
	config := SmallGPTConfig()
	g, err := NewGPT(config)
	if err != nil {
		t.Fatalf("NewGPT failed: %v", err)
	}

	logits := g.Forward([]int{2, 5, 9})
	if len(logits) != 3 {
		t.Fatalf("Expected 3 positions, got %d", len(logits))
	}
	for i, l := range logits {
		if len(l) != config.VocabSize {
			t.Errorf("Position %d: expected %d logits, got %d", i, config.VocabSize, len(l))
		}
	}
}

func TestNextShapeAndCache(t *testing.T) {
	config := SmallGPTConfig()
	g, err := NewGPT(config)
	if err != nil {
		t.Fatalf("NewGPT failed: %v", err)
	}

	batch := [][]int{
		{2, 5, 0, 0},
		{2, 7, 0, 0},
	}
	logits, cache, err := g.Next(batch, 2)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if cache != nil {
		t.Errorf("Expected nil cache, got %v", cache)
	}
	if len(logits) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(logits))
	}
	for i, row := range logits {
		if len(row) != config.VocabSize {
			t.Errorf("Row %d: expected %d logits, got %d", i, config.VocabSize, len(row))
		}
	}
}

func TestNextIgnoresLaterTokens(t *testing.T) {
	g, err := NewGPT(SmallGPTConfig())
	if err != nil {
		t.Fatalf("NewGPT failed: %v", err)
	}

	a, _, err := g.Next([][]int{{2, 5, 0, 0}}, 2)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	b, _, err := g.Next([][]int{{2, 5, 9, 9}}, 2)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("Logits at index depend on tokens at or after it")
		}
	}
}

func TestNextRejectsBadIndex(t *testing.T) {
	g, err := NewGPT(SmallGPTConfig())
	if err != nil {
		t.Fatalf("NewGPT failed: %v", err)
	}
	if _, _, err := g.Next([][]int{{2}}, 0); err == nil {
		t.Error("Expected error for index 0")
	}
	if _, _, err := g.Next([][]int{{2}}, 100); err == nil {
		t.Error("Expected error for index beyond seq len")
	}
}

func TestLossMasksPadTargets(t *testing.T) {
	g, err := NewGPT(SmallGPTConfig())
	if err != nil {
		t.Fatalf("NewGPT failed: %v", err)
	}

	// Padding the tail must not change the loss on the real tokens.
	short, err := g.Loss([]int{2, 5, 9}, []int{5, 9, 7})
	if err != nil {
		t.Fatalf("Loss failed: %v", err)
	}
	padded, err := g.Loss(
		[]int{2, 5, 9, tokenizer.PadID, tokenizer.PadID},
		[]int{5, 9, 7, tokenizer.PadID, tokenizer.PadID},
	)
	if err != nil {
		t.Fatalf("Loss failed: %v", err)
	}
	if math.Abs(short.Data()-padded.Data()) > 1e-9 {
		t.Errorf("Padding changed loss: %f vs %f", short.Data(), padded.Data())
	}
}

func TestLossRejectsAllPadTargets(t *testing.T) {
	g, err := NewGPT(SmallGPTConfig())
	if err != nil {
		t.Fatalf("NewGPT failed: %v", err)
	}
	if _, err := g.Loss([]int{2, 0}, []int{0, 0}); err == nil {
		t.Error("Expected error when every target is a pad token")
	}
}

func TestTrainingReducesLoss(t *testing.T) {
	model := smallModel(t)
	ds := NewDatasetFromText(SampleCorpus, 1)

	config := &TrainingConfig{
		LearningRate: 1e-2,
		Epochs:       5,
		BatchSize:    4,
		DecayLR:      true,
	}
	trainer := NewTrainer(model, config)

	var first, last float64
	steps := 0
	err := trainer.Train(ds, func(s TrainStats) {
		if steps == 0 {
			first = s.Loss
		}
		last = s.Loss
		steps++
		if math.IsNaN(s.Loss) || math.IsInf(s.Loss, 0) {
			t.Fatalf("Loss diverged at step %d: %f", s.Step, s.Loss)
		}
		if math.Abs(s.Perplexity-math.Exp(s.Loss)) > 1e-9 {
			t.Errorf("Perplexity must be exp(loss), got %f vs %f", s.Perplexity, math.Exp(s.Loss))
		}
	})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if steps == 0 {
		t.Fatal("Expected training steps to run")
	}
	if last >= first {
		t.Errorf("Expected loss to decrease: first %f, last %f", first, last)
	}
}

func TestEvaluatePerplexity(t *testing.T) {
	model := smallModel(t)
	ds := NewDatasetFromText(SampleCorpus, 1)
	trainer := NewTrainer(model, NewTrainingConfig())

	loss, ppl, err := trainer.Evaluate(ds)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if math.Abs(ppl-math.Exp(loss)) > 1e-9 {
		t.Errorf("Expected perplexity exp(loss), got %f vs %f", ppl, math.Exp(loss))
	}
}

func TestGreedyGenerationIsDeterministic(t *testing.T) {
	model := smallModel(t)

	config := sampler.NewSamplingConfig(sampler.SamplingGreedy)
	a, err := model.GenerateWith("котката", config)
	if err != nil {
		t.Fatalf("GenerateWith failed: %v", err)
	}
	b, err := model.GenerateWith("котката", config)
	if err != nil {
		t.Fatalf("GenerateWith failed: %v", err)
	}
	if a != b {
		t.Errorf("Expected identical greedy generations, got %q and %q", a, b)
	}
}

func TestGenerateFromEmptyPrompt(t *testing.T) {
	model := smallModel(t)

	out, err := model.GenerateText("")
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if out == "" {
		t.Error("Expected generated text from the start token alone")
	}
}

func TestSubwordBackendDrivesModel(t *testing.T) {
	config := &ModelConfig{
		GPTConfig: SmallGPTConfig(),
		Sampling:  sampler.NewSamplingConfig(sampler.SamplingGreedy),
	}
	model, err := NewLanguageModel(config)
	if err != nil {
		t.Fatalf("NewLanguageModel failed: %v", err)
	}

	sw := new(tokenizer.Subword)
	if err := sw.Train(SampleCorpus, config.GPTConfig.VocabSize); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if err := model.SetTokenizer(sw); err != nil {
		t.Fatalf("SetTokenizer failed: %v", err)
	}

	text := "котката спи"
	ids := model.Encode(text)
	if len(ids) == 0 {
		t.Fatal("Expected non-empty encoding")
	}
	got := strings.ReplaceAll(model.Decode(ids), " ", "")
	want := strings.ReplaceAll(text, " ", "")
	if got != want {
		t.Errorf("Decode mismatch: got %q, want %q", got, want)
	}

	if _, err := model.GenerateText("котката"); err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	g, err := NewGPT(SmallGPTConfig())
	if err != nil {
		t.Fatalf("NewGPT failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.json")
	if err := g.SaveCheckpoint(path); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	loaded, err := LoadGPT(path)
	if err != nil {
		t.Fatalf("LoadGPT failed: %v", err)
	}

	tokens := []int{2, 5, 9, 1}
	want := g.Forward(tokens)
	got := loaded.Forward(tokens)
	for i := range want {
		for j := range want[i] {
			if math.Abs(want[i][j].Data()-got[i][j].Data()) > 1e-9 {
				t.Fatalf("Logits differ after reload at (%d, %d)", i, j)
			}
		}
	}
}

func TestDatasetLoadingAndBatching(t *testing.T) {
	ds := NewDatasetFromText("а\nдълъг ред с много думи\n\nоще един ред\n", 3)
	if ds.Len() != 2 {
		t.Fatalf("Expected 2 lines after filtering, got %d", ds.Len())
	}

	batches := ds.Batches(1)
	if len(batches) != 2 {
		t.Errorf("Expected 2 batches, got %d", len(batches))
	}

	train, val := ds.Split(0.5)
	if train.Len()+val.Len() != ds.Len() {
		t.Errorf("Split lost lines: %d + %d != %d", train.Len(), val.Len(), ds.Len())
	}
}

func TestDatasetShuffleDeterministic(t *testing.T) {
	a := NewDatasetFromText(SampleCorpus, 1)
	b := NewDatasetFromText(SampleCorpus, 1)
	a.Shuffle(7)
	b.Shuffle(7)
	for i := range a.Lines {
		if a.Lines[i] != b.Lines[i] {
			t.Fatalf("Expected identical order for same seed")
		}
	}
}
