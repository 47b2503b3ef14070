package autograd

import (
	"math"
)

// Adam implements the Adam optimizer over a flat parameter list.
type Adam struct {
	params []*Value
	m      []float64
	v      []float64
	step   int

	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// NewAdam creates an Adam optimizer with the usual defaults.
func NewAdam(params []*Value, learningRate float64) *Adam {
	return &Adam{
		params:       params,
		m:            make([]float64, len(params)),
		v:            make([]float64, len(params)),
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Step applies one bias-corrected Adam update using the gradients
// accumulated by Backward, then clears them.
func (a *Adam) Step() {
	a.StepLR(a.LearningRate)
}

// StepLR is Step with an explicit learning rate, for schedules that decay
// the rate over training.
func (a *Adam) StepLR(lr float64) {
	a.step++
	t := float64(a.step)
	for i, p := range a.params {
		g := p.Grad()
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		mHat := a.m[i] / (1 - math.Pow(a.Beta1, t))
		vHat := a.v[i] / (1 - math.Pow(a.Beta2, t))
		p.SetData(p.Data() - lr*mHat/(math.Sqrt(vHat)+a.Epsilon))
		p.ZeroGrad()
	}
}

// ZeroGrad clears all parameter gradients without updating.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}
