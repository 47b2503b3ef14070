package transformer

import (
	"math"

	"github.com/tektwister/bg_language_model/autograd"
)

// Linear represents a fully connected layer: y = Wx + b
type Linear struct {
	Weight autograd.Matrix // (outFeatures, inFeatures)
	Bias   []*autograd.Value
}

// NewLinear creates a new Linear layer with Xavier initialization.
func NewLinear(inFeatures, outFeatures int) *Linear {
	return NewLinearWithBias(inFeatures, outFeatures, true)
}

// NewLinearWithBias creates a new Linear layer with optional bias.
func NewLinearWithBias(inFeatures, outFeatures int, bias bool) *Linear {
	// Xavier initialization: scale by sqrt(2 / (in + out))
	scale := math.Sqrt(2.0 / float64(inFeatures+outFeatures))
	l := &Linear{
		Weight: autograd.NewMatrix(outFeatures, inFeatures, scale),
	}
	if bias {
		l.Bias = autograd.NewVector(outFeatures, 0)
	}
	return l
}

// Forward applies the linear transformation to one position vector.
func (l *Linear) Forward(x []*autograd.Value) []*autograd.Value {
	out := l.Weight.Apply(x)
	if l.Bias != nil {
		for i := range out {
			out[i] = out[i].Add(l.Bias[i])
		}
	}
	return out
}

// ForwardSeq applies the layer to every position of a sequence.
func (l *Linear) ForwardSeq(xs [][]*autograd.Value) [][]*autograd.Value {
	out := make([][]*autograd.Value, len(xs))
	for i, x := range xs {
		out[i] = l.Forward(x)
	}
	return out
}

// Parameters returns all trainable parameters.
func (l *Linear) Parameters() []*autograd.Value {
	return append(l.Weight.Flatten(), l.Bias...)
}

// ZeroGrad resets all parameter gradients.
func (l *Linear) ZeroGrad() {
	for _, p := range l.Parameters() {
		p.ZeroGrad()
	}
}

// Embedding maps token IDs to dense vectors via a lookup table.
type Embedding struct {
	Weight    autograd.Matrix // (vocabSize, embedDim)
	VocabSize int
	EmbedDim  int
}

// NewEmbedding creates a new Embedding layer.
func NewEmbedding(vocabSize, embedDim int) *Embedding {
	scale := math.Sqrt(1.0 / float64(embedDim))
	return &Embedding{
		Weight:    autograd.NewMatrix(vocabSize, embedDim, scale),
		VocabSize: vocabSize,
		EmbedDim:  embedDim,
	}
}

// Forward maps token IDs to their embedding rows.
// Input: []int of length seqLen
// Output: (seqLen, embedDim)
func (e *Embedding) Forward(tokenIDs []int) [][]*autograd.Value {
	out := make([][]*autograd.Value, len(tokenIDs))
	for i, id := range tokenIDs {
		out[i] = e.Weight[id]
	}
	return out
}

// Parameters returns all trainable parameters.
func (e *Embedding) Parameters() []*autograd.Value {
	return e.Weight.Flatten()
}

// ZeroGrad resets all parameter gradients.
func (e *Embedding) ZeroGrad() {
	for _, p := range e.Parameters() {
		p.ZeroGrad()
	}
}

// LayerNorm implements Layer Normalization over the feature dimension.
type LayerNorm struct {
	Gamma   []*autograd.Value // scale parameter
	Beta    []*autograd.Value // shift parameter
	Epsilon float64
	NormDim int
}

// NewLayerNorm creates a new LayerNorm layer.
func NewLayerNorm(normalizedShape int) *LayerNorm {
	return &LayerNorm{
		Gamma:   autograd.NewVector(normalizedShape, 1),
		Beta:    autograd.NewVector(normalizedShape, 0),
		Epsilon: 1e-5,
		NormDim: normalizedShape,
	}
}

// Forward normalizes one position vector to zero mean and unit variance,
// then applies the learned scale and shift.
func (ln *LayerNorm) Forward(x []*autograd.Value) []*autograd.Value {
	n := float64(len(x))
	mean := autograd.Sum(x).DivScalar(n)

	variance := autograd.NewValue(0)
	for _, xi := range x {
		d := xi.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.DivScalar(n)
	invStd := variance.AddScalar(ln.Epsilon).Sqrt().Pow(-1)

	out := make([]*autograd.Value, len(x))
	for i, xi := range x {
		out[i] = xi.Sub(mean).Mul(invStd).Mul(ln.Gamma[i]).Add(ln.Beta[i])
	}
	return out
}

// ForwardSeq normalizes every position of a sequence independently.
func (ln *LayerNorm) ForwardSeq(xs [][]*autograd.Value) [][]*autograd.Value {
	out := make([][]*autograd.Value, len(xs))
	for i, x := range xs {
		out[i] = ln.Forward(x)
	}
	return out
}

// Parameters returns all trainable parameters.
func (ln *LayerNorm) Parameters() []*autograd.Value {
	return append(append([]*autograd.Value{}, ln.Gamma...), ln.Beta...)
}

// ZeroGrad resets all parameter gradients.
func (ln *LayerNorm) ZeroGrad() {
	for _, p := range ln.Parameters() {
		p.ZeroGrad()
	}
}

// FeedForward implements the feed-forward network in transformer blocks.
type FeedForward struct {
	Linear1 *Linear
	Linear2 *Linear
	UseGELU bool
}

// NewFeedForward creates a new feed-forward network.
// dModel: input/output dimension
// dFF: hidden layer dimension
// useGELU: if true use GELU activation, else use ReLU
func NewFeedForward(dModel, dFF int, useGELU bool) *FeedForward {
	return &FeedForward{
		Linear1: NewLinear(dModel, dFF),
		Linear2: NewLinear(dFF, dModel),
		UseGELU: useGELU,
	}
}

// Forward applies the feed-forward network to one position.
// x -> Linear1 -> Activation -> Linear2
func (ff *FeedForward) Forward(x []*autograd.Value) []*autograd.Value {
	hidden := ff.Linear1.Forward(x)
	for i, h := range hidden {
		if ff.UseGELU {
			hidden[i] = h.GELU()
		} else {
			hidden[i] = h.ReLU()
		}
	}
	return ff.Linear2.Forward(hidden)
}

// Parameters returns all trainable parameters.
func (ff *FeedForward) Parameters() []*autograd.Value {
	return append(ff.Linear1.Parameters(), ff.Linear2.Parameters()...)
}

// ZeroGrad resets all parameter gradients.
func (ff *FeedForward) ZeroGrad() {
	for _, p := range ff.Parameters() {
		p.ZeroGrad()
	}
}

// TransformerBlock implements a single decoder block with causal
// self-attention and feed-forward sublayers.
type TransformerBlock struct {
	Attn *MultiHeadAttention
	LN1  *LayerNorm
	LN2  *LayerNorm
	FFN  *FeedForward
}

// NewTransformerBlock creates a new transformer block.
func NewTransformerBlock(dModel, numHeads, dFF int, useGELU bool) *TransformerBlock {
	return &TransformerBlock{
		Attn: NewMultiHeadAttention(dModel, numHeads),
		LN1:  NewLayerNorm(dModel),
		LN2:  NewLayerNorm(dModel),
		FFN:  NewFeedForward(dModel, dFF, useGELU),
	}
}

// Forward applies the block to a sequence of position vectors.
// Attention is always causal: position i only attends to positions <= i.
func (tb *TransformerBlock) Forward(xs [][]*autograd.Value) [][]*autograd.Value {
	// Self-attention with residual connection and layer norm
	attnOut := tb.Attn.Forward(xs)
	out := make([][]*autograd.Value, len(xs))
	for i := range xs {
		res := make([]*autograd.Value, len(xs[i]))
		for j := range xs[i] {
			res[j] = xs[i][j].Add(attnOut[i][j])
		}
		out[i] = tb.LN1.Forward(res)
	}

	// Feed-forward with residual connection and layer norm
	for i := range out {
		ffnOut := tb.FFN.Forward(out[i])
		res := make([]*autograd.Value, len(out[i]))
		for j := range out[i] {
			res[j] = out[i][j].Add(ffnOut[j])
		}
		out[i] = tb.LN2.Forward(res)
	}
	return out
}

// Parameters returns all trainable parameters.
func (tb *TransformerBlock) Parameters() []*autograd.Value {
	var params []*autograd.Value
	for _, m := range []autograd.Module{tb.Attn, tb.LN1, tb.FFN, tb.LN2} {
		params = append(params, m.Parameters()...)
	}
	return params
}

// ZeroGrad resets all parameter gradients.
func (tb *TransformerBlock) ZeroGrad() {
	for _, p := range tb.Parameters() {
		p.ZeroGrad()
	}
}
