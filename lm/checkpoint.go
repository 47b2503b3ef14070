package lm

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tektwister/bg_language_model/autograd"
	"github.com/tektwister/bg_language_model/transformer"
)

// Checkpoint is the JSON-serializable state of a GPT model.
type Checkpoint struct {
	Config   *GPTConfig     `json:"config"`
	TokenEmb [][]float64    `json:"token_emb"`
	PosEmb   [][]float64    `json:"pos_emb"`
	Blocks   []blockState   `json:"blocks"`
	LnF      layerNormState `json:"ln_f"`
	LMHead   linearState    `json:"lm_head"`
}

type linearState struct {
	Weight [][]float64 `json:"weight"`
	Bias   []float64   `json:"bias,omitempty"`
}

type layerNormState struct {
	Gamma []float64 `json:"gamma"`
	Beta  []float64 `json:"beta"`
}

type blockState struct {
	WQ  linearState    `json:"wq"`
	WK  linearState    `json:"wk"`
	WV  linearState    `json:"wv"`
	WO  linearState    `json:"wo"`
	LN1 layerNormState `json:"ln1"`
	LN2 layerNormState `json:"ln2"`
	FF1 linearState    `json:"ff1"`
	FF2 linearState    `json:"ff2"`
}

// Checkpoint captures the current model weights.
func (g *GPT) Checkpoint() *Checkpoint {
	blocks := make([]blockState, len(g.blocks))
	for i, b := range g.blocks {
		blocks[i] = blockState{
			WQ:  exportLinear(b.Attn.WQ),
			WK:  exportLinear(b.Attn.WK),
			WV:  exportLinear(b.Attn.WV),
			WO:  exportLinear(b.Attn.WO),
			LN1: exportLayerNorm(b.LN1),
			LN2: exportLayerNorm(b.LN2),
			FF1: exportLinear(b.FFN.Linear1),
			FF2: exportLinear(b.FFN.Linear2),
		}
	}
	return &Checkpoint{
		Config:   g.config,
		TokenEmb: g.tokenEmb.Weight.Export(),
		PosEmb:   g.posEmb.Weight.Export(),
		Blocks:   blocks,
		LnF:      exportLayerNorm(g.lnF),
		LMHead:   exportLinear(g.lmHead),
	}
}

// SaveCheckpoint writes the model weights to a JSON file.
func (g *GPT) SaveCheckpoint(path string) error {
	b, err := json.Marshal(g.Checkpoint())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadGPT restores a model from a checkpoint file.
func LoadGPT(path string) (*GPT, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", path, err)
	}
	return FromCheckpoint(&cp)
}

// FromCheckpoint builds a model from checkpoint state.
func FromCheckpoint(cp *Checkpoint) (*GPT, error) {
	if cp.Config == nil {
		return nil, fmt.Errorf("checkpoint has no config")
	}
	g, err := NewGPT(cp.Config)
	if err != nil {
		return nil, err
	}
	if len(cp.Blocks) != len(g.blocks) {
		return nil, fmt.Errorf("checkpoint has %d blocks, config wants %d", len(cp.Blocks), len(g.blocks))
	}

	g.tokenEmb.Weight = autograd.ImportMatrix(cp.TokenEmb)
	g.posEmb.Weight = autograd.ImportMatrix(cp.PosEmb)
	for i, bs := range cp.Blocks {
		b := g.blocks[i]
		importLinear(b.Attn.WQ, bs.WQ)
		importLinear(b.Attn.WK, bs.WK)
		importLinear(b.Attn.WV, bs.WV)
		importLinear(b.Attn.WO, bs.WO)
		importLayerNorm(b.LN1, bs.LN1)
		importLayerNorm(b.LN2, bs.LN2)
		importLinear(b.FFN.Linear1, bs.FF1)
		importLinear(b.FFN.Linear2, bs.FF2)
	}
	importLayerNorm(g.lnF, cp.LnF)
	importLinear(g.lmHead, cp.LMHead)
	return g, nil
}

func exportLinear(l *transformer.Linear) linearState {
	return linearState{
		Weight: l.Weight.Export(),
		Bias:   exportVector(l.Bias),
	}
}

func importLinear(l *transformer.Linear, s linearState) {
	l.Weight = autograd.ImportMatrix(s.Weight)
	l.Bias = importVector(s.Bias)
}

func exportLayerNorm(ln *transformer.LayerNorm) layerNormState {
	return layerNormState{
		Gamma: exportVector(ln.Gamma),
		Beta:  exportVector(ln.Beta),
	}
}

func importLayerNorm(ln *transformer.LayerNorm, s layerNormState) {
	ln.Gamma = importVector(s.Gamma)
	ln.Beta = importVector(s.Beta)
}

func exportVector(vs []*autograd.Value) []float64 {
	if vs == nil {
		return nil
	}
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v.Data()
	}
	return out
}

func importVector(fs []float64) []*autograd.Value {
	if fs == nil {
		return nil
	}
	out := make([]*autograd.Value, len(fs))
	for i, f := range fs {
		out[i] = autograd.NewValue(f)
	}
	return out
}
