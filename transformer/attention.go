package transformer

import (
	"math"

	"github.com/tektwister/bg_language_model/autograd"
)

// MultiHeadAttention implements causal multi-head self-attention. Each
// position attends to itself and earlier positions only, so no explicit
// mask tensor is needed.
type MultiHeadAttention struct {
	NumHeads int
	DModel   int
	DK       int

	WQ *Linear // Query projection
	WK *Linear // Key projection
	WV *Linear // Value projection
	WO *Linear // Output projection
}

// NewMultiHeadAttention creates a new MultiHeadAttention layer.
func NewMultiHeadAttention(dModel, numHeads int) *MultiHeadAttention {
	if dModel%numHeads != 0 {
		panic("dModel must be divisible by numHeads")
	}
	return &MultiHeadAttention{
		NumHeads: numHeads,
		DModel:   dModel,
		DK:       dModel / numHeads,
		WQ:       NewLinear(dModel, dModel),
		WK:       NewLinear(dModel, dModel),
		WV:       NewLinear(dModel, dModel),
		WO:       NewLinear(dModel, dModel),
	}
}

// Forward computes causal self-attention over a sequence.
// Input and output: (seqLen, dModel)
func (mha *MultiHeadAttention) Forward(xs [][]*autograd.Value) [][]*autograd.Value {
	seqLen := len(xs)
	scale := 1.0 / math.Sqrt(float64(mha.DK))

	// Linear projections per position.
	Q := mha.WQ.ForwardSeq(xs)
	K := mha.WK.ForwardSeq(xs)
	V := mha.WV.ForwardSeq(xs)

	out := make([][]*autograd.Value, seqLen)
	for i := 0; i < seqLen; i++ {
		concat := make([]*autograd.Value, 0, mha.DModel)
		for h := 0; h < mha.NumHeads; h++ {
			lo := h * mha.DK

			// Scores over positions j <= i for this head.
			scores := make([]*autograd.Value, i+1)
			for j := 0; j <= i; j++ {
				dot := autograd.NewValue(0)
				for d := 0; d < mha.DK; d++ {
					dot = dot.Add(Q[i][lo+d].Mul(K[j][lo+d]))
				}
				scores[j] = dot.MulScalar(scale)
			}
			weights := autograd.Softmax(scores)

			// Weighted sum of values.
			for d := 0; d < mha.DK; d++ {
				s := autograd.NewValue(0)
				for j := 0; j <= i; j++ {
					s = s.Add(weights[j].Mul(V[j][lo+d]))
				}
				concat = append(concat, s)
			}
		}
		out[i] = mha.WO.Forward(concat)
	}
	return out
}

// Parameters returns all trainable parameters.
func (mha *MultiHeadAttention) Parameters() []*autograd.Value {
	params := mha.WQ.Parameters()
	params = append(params, mha.WK.Parameters()...)
	params = append(params, mha.WV.Parameters()...)
	params = append(params, mha.WO.Parameters()...)
	return params
}

// ZeroGrad resets all parameter gradients.
func (mha *MultiHeadAttention) ZeroGrad() {
	for _, p := range mha.Parameters() {
		p.ZeroGrad()
	}
}
