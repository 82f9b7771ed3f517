package model

import (
	"fmt"
	"math"
)

// Array is a dense row-major tensor of float64 values. Posterior arrays are
// shaped (chain, draw); log-likelihood and posterior-predictive arrays are
// shaped (chain, draw, observation).
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray wraps data in an Array of the given shape. The data is not copied.
func NewArray(data []float64, shape ...int) (Array, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return Array{}, fmt.Errorf("negative dimension in shape %v: %w", shape, ErrShapeMismatch)
		}
		n *= d
	}
	if n != len(data) {
		return Array{}, fmt.Errorf("cannot reshape %d elements into %v: %w", len(data), shape, ErrShapeMismatch)
	}
	return Array{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Len returns the total number of elements.
func (a Array) Len() int { return len(a.Data) }

// At returns the element at the given multi-index.
func (a Array) At(idx ...int) float64 {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("model: index rank %d does not match array rank %d", len(idx), len(a.Shape)))
	}
	off := 0
	for i, j := range idx {
		if j < 0 || j >= a.Shape[i] {
			panic(fmt.Sprintf("model: index %d out of range for dimension %d of size %d", j, i, a.Shape[i]))
		}
		off = off*a.Shape[i] + j
	}
	return a.Data[off]
}

// Log returns a new array holding the natural log of every element.
func (a Array) Log() Array {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = math.Log(v)
	}
	return Array{Shape: append([]int(nil), a.Shape...), Data: out}
}

// Exp is the inverse of Log.
func (a Array) Exp() Array {
	out := make([]float64, len(a.Data))
	for i, v := range a.Data {
		out[i] = math.Exp(v)
	}
	return Array{Shape: append([]int(nil), a.Shape...), Data: out}
}

// Mean returns the arithmetic mean over all elements.
func (a Array) Mean() float64 {
	if len(a.Data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range a.Data {
		sum += v
	}
	return sum / float64(len(a.Data))
}
