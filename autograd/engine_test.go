package autograd

import (
	"math"
	"testing"
)

func TestBasicOps(t *testing.T) {
	a := NewValue(2.0)
	b := NewValue(3.0)

	c := a.Mul(b).Add(a) // c = a*b + a = 8
	if c.Data() != 8.0 {
		t.Errorf("Expected 8.0, got %f", c.Data())
	}

	c.Backward()
	// dc/da = b + 1 = 4, dc/db = a = 2
	if a.Grad() != 4.0 {
		t.Errorf("Expected grad 4.0 for a, got %f", a.Grad())
	}
	if b.Grad() != 2.0 {
		t.Errorf("Expected grad 2.0 for b, got %f", b.Grad())
	}
}

func TestExpLog(t *testing.T) {
	x := NewValue(1.5)
	y := x.Exp().Log() // identity
	if math.Abs(y.Data()-1.5) > 1e-9 {
		t.Errorf("Expected 1.5, got %f", y.Data())
	}

	y.Backward()
	if math.Abs(x.Grad()-1.0) > 1e-9 {
		t.Errorf("Expected grad 1.0, got %f", x.Grad())
	}
}

func TestDivGrad(t *testing.T) {
	a := NewValue(6.0)
	b := NewValue(2.0)
	c := a.Div(b)
	if math.Abs(c.Data()-3.0) > 1e-9 {
		t.Errorf("Expected 3.0, got %f", c.Data())
	}

	c.Backward()
	// dc/da = 1/b = 0.5, dc/db = -a/b^2 = -1.5
	if math.Abs(a.Grad()-0.5) > 1e-9 {
		t.Errorf("Expected grad 0.5 for a, got %f", a.Grad())
	}
	if math.Abs(b.Grad()+1.5) > 1e-9 {
		t.Errorf("Expected grad -1.5 for b, got %f", b.Grad())
	}
}

func TestSoftmax(t *testing.T) {
	logits := []*Value{NewValue(1), NewValue(2), NewValue(3)}
	probs := Softmax(logits)

	sum := 0.0
	for _, p := range probs {
		sum += p.Data()
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("Expected probabilities to sum to 1, got %f", sum)
	}
	if !(probs[2].Data() > probs[1].Data() && probs[1].Data() > probs[0].Data()) {
		t.Errorf("Expected monotone probabilities, got %v %v %v",
			probs[0].Data(), probs[1].Data(), probs[2].Data())
	}
}

func TestSoftmaxCrossEntropyGrad(t *testing.T) {
	// For loss = -log(softmax(logits)[target]), dloss/dlogit_i = p_i - 1{i==target}
	logits := []*Value{NewValue(0.5), NewValue(-0.2), NewValue(1.0)}
	probs := Softmax(logits)
	target := 2
	loss := probs[target].Log().Neg()
	loss.Backward()

	for i, l := range logits {
		want := probs[i].Data()
		if i == target {
			want -= 1.0
		}
		if math.Abs(l.Grad()-want) > 1e-9 {
			t.Errorf("logit %d: expected grad %f, got %f", i, want, l.Grad())
		}
	}
}

func TestGELU(t *testing.T) {
	// GELU(0) = 0, GELU is close to identity for large positive inputs.
	zero := NewValue(0).GELU()
	if math.Abs(zero.Data()) > 1e-12 {
		t.Errorf("Expected GELU(0)=0, got %f", zero.Data())
	}
	big := NewValue(5).GELU()
	if math.Abs(big.Data()-5) > 1e-3 {
		t.Errorf("Expected GELU(5)~=5, got %f", big.Data())
	}
}

func TestNumericalGradient(t *testing.T) {
	// Finite-difference check of a small composed expression.
	f := func(x float64) float64 {
		return math.Exp(x)*math.Tanh(x) + x*x
	}

	x0 := 0.7
	x := NewValue(x0)
	y := x.Exp().Mul(x.Tanh()).Add(x.Pow(2))
	y.Backward()

	eps := 1e-6
	numGrad := (f(x0+eps) - f(x0-eps)) / (2 * eps)
	if math.Abs(x.Grad()-numGrad) > 1e-5 {
		t.Errorf("Analytic grad %f disagrees with numerical %f", x.Grad(), numGrad)
	}
}

func TestAdamStepMovesAgainstGradient(t *testing.T) {
	w := NewValue(1.0)
	opt := NewAdam([]*Value{w}, 0.1)

	loss := w.Pow(2) // minimum at 0
	loss.Backward()
	before := w.Data()
	opt.Step()

	if w.Data() >= before {
		t.Errorf("Expected Adam to decrease w, got %f -> %f", before, w.Data())
	}
	if w.Grad() != 0 {
		t.Errorf("Expected grad cleared after step, got %f", w.Grad())
	}
}

func TestMatrixApply(t *testing.T) {
	m := Matrix{
		{NewValue(1), NewValue(2)},
		{NewValue(3), NewValue(4)},
	}
	x := []*Value{NewValue(1), NewValue(1)}
	out := m.Apply(x)

	if out[0].Data() != 3 || out[1].Data() != 7 {
		t.Errorf("Expected [3, 7], got [%f, %f]", out[0].Data(), out[1].Data())
	}
}
