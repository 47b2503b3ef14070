package autograd

import (
	"math/rand"
)

// Module is the interface for all neural network modules.
type Module interface {
	Parameters() []*Value
	ZeroGrad()
}

// Matrix is a 2D grid of trainable Values, stored row-major.
type Matrix [][]*Value

// NewMatrix creates a rows x cols matrix with normally distributed entries
// scaled by std.
func NewMatrix(rows, cols int, std float64) Matrix {
	m := make(Matrix, rows)
	for r := range m {
		row := make([]*Value, cols)
		for c := range row {
			row[c] = NewValue(rand.NormFloat64() * std)
		}
		m[r] = row
	}
	return m
}

// NewVector creates a vector of length n with every entry set to fill.
func NewVector(n int, fill float64) []*Value {
	v := make([]*Value, n)
	for i := range v {
		v[i] = NewValue(fill)
	}
	return v
}

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the number of columns, or 0 for an empty matrix.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Apply computes m @ x for a column vector x of length Cols().
// Each output element is the dot product of a weight row with x.
func (m Matrix) Apply(x []*Value) []*Value {
	out := make([]*Value, len(m))
	for r, row := range m {
		s := NewValue(0)
		for i := range x {
			s = s.Add(row[i].Mul(x[i]))
		}
		out[r] = s
	}
	return out
}

// Flatten returns all entries in row-major order.
func (m Matrix) Flatten() []*Value {
	out := make([]*Value, 0, m.Rows()*m.Cols())
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// Export copies the matrix data into plain float64 rows.
func (m Matrix) Export() [][]float64 {
	out := make([][]float64, len(m))
	for r, row := range m {
		fr := make([]float64, len(row))
		for c, v := range row {
			fr[c] = v.Data()
		}
		out[r] = fr
	}
	return out
}

// ImportMatrix builds a Matrix from plain float64 rows.
func ImportMatrix(rows [][]float64) Matrix {
	m := make(Matrix, len(rows))
	for r, row := range rows {
		vr := make([]*Value, len(row))
		for c, f := range row {
			vr[c] = NewValue(f)
		}
		m[r] = vr
	}
	return m
}
