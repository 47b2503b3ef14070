package transformer

import (
	"math"
	"testing"

	"github.com/tektwister/bg_language_model/autograd"
)

func randSeq(seqLen, dim int) [][]*autograd.Value {
	xs := make([][]*autograd.Value, seqLen)
	for i := range xs {
		xs[i] = make([]*autograd.Value, dim)
		for j := range xs[i] {
			xs[i][j] = autograd.NewValue(float64(i*dim+j)*0.01 - 0.3)
		}
	}
	return xs
}

func TestLinearShape(t *testing.T) {
	l := NewLinear(8, 4)
	out := l.Forward(autograd.NewVector(8, 0.5))
	if len(out) != 4 {
		t.Errorf("Expected output dim 4, got %d", len(out))
	}
	if got := len(l.Parameters()); got != 8*4+4 {
		t.Errorf("Expected %d parameters, got %d", 8*4+4, got)
	}
}

func TestLinearNoBias(t *testing.T) {
	l := NewLinearWithBias(6, 3, false)
	if got := len(l.Parameters()); got != 18 {
		t.Errorf("Expected 18 parameters, got %d", got)
	}
}

func TestEmbeddingLookup(t *testing.T) {
	e := NewEmbedding(10, 4)
	out := e.Forward([]int{1, 1, 7})
	if len(out) != 3 {
		t.Fatalf("Expected 3 positions, got %d", len(out))
	}
	// Same token id must share the same embedding row.
	for j := 0; j < 4; j++ {
		if out[0][j] != out[1][j] {
			t.Errorf("Expected shared embedding for repeated token at dim %d", j)
		}
	}
}

func TestLayerNormNormalizes(t *testing.T) {
	ln := NewLayerNorm(8)
	x := make([]*autograd.Value, 8)
	for i := range x {
		x[i] = autograd.NewValue(float64(i) * 3.0)
	}
	out := ln.Forward(x)

	mean := 0.0
	for _, o := range out {
		mean += o.Data()
	}
	mean /= float64(len(out))
	if math.Abs(mean) > 1e-6 {
		t.Errorf("Expected zero mean, got %f", mean)
	}

	variance := 0.0
	for _, o := range out {
		variance += (o.Data() - mean) * (o.Data() - mean)
	}
	variance /= float64(len(out))
	if math.Abs(variance-1.0) > 1e-3 {
		t.Errorf("Expected unit variance, got %f", variance)
	}
}

func TestTransformerBlockShape(t *testing.T) {
	tb := NewTransformerBlock(8, 2, 16, true)
	xs := randSeq(5, 8)
	out := tb.Forward(xs)

	if len(out) != 5 {
		t.Fatalf("Expected 5 positions, got %d", len(out))
	}
	for i, o := range out {
		if len(o) != 8 {
			t.Errorf("Position %d: expected dim 8, got %d", i, len(o))
		}
	}
}

func TestAttentionIsCausal(t *testing.T) {
	tb := NewTransformerBlock(8, 2, 16, true)

	xs := randSeq(4, 8)
	base := tb.Forward(xs)

	// Perturb only the last position; earlier outputs must not change.
	perturbed := randSeq(4, 8)
	for j := range perturbed[3] {
		perturbed[3][j] = autograd.NewValue(perturbed[3][j].Data() + 5.0)
	}
	got := tb.Forward(perturbed)

	for i := 0; i < 3; i++ {
		for j := range base[i] {
			if math.Abs(base[i][j].Data()-got[i][j].Data()) > 1e-12 {
				t.Fatalf("Position %d leaked information from a later position", i)
			}
		}
	}
}

func TestTransformerBlockGradientsFlow(t *testing.T) {
	tb := NewTransformerBlock(4, 2, 8, false)
	xs := randSeq(3, 4)

	out := tb.Forward(xs)
	loss := autograd.NewValue(0)
	for _, o := range out {
		for _, v := range o {
			loss = loss.Add(v.Mul(v))
		}
	}
	loss.Backward()

	nonZero := 0
	for _, p := range tb.Parameters() {
		if p.Grad() != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Error("Expected non-zero gradients after backward")
	}
}

func TestMultiHeadAttentionRejectsBadHeads(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when dModel is not divisible by numHeads")
		}
	}()
	NewMultiHeadAttention(10, 3)
}
