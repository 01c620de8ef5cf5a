// Package lfi provides the Gorgonia operations used to build the
// mixture density networks of the likelihood-free inference packages.
package lfi

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Repeat repeats each element of x repeats times along axis. Unlike
// Gorgonia's broadcasting, Repeat is differentiable with respect to x:
// the gradient of each input element is the sum of the gradients of
// its copies.
func Repeat(x *G.Node, axis, repeats int) (*G.Node, error) {
	op, err := newRepeatOp(axis, repeats)
	if err != nil {
		return nil, fmt.Errorf("repeat: %v", err)
	}

	return G.ApplyOp(op, x)
}

// Clamp clamps a node's values to be between min and max. This function
// can clamp a tensor storing float64's or float32's. If passGradient is
// true, then the gradient is passed through the clamping operation:
//
//         { 1 if min <= x <= max
// grad =  {
//		   { 1 otherwise
//
// Otherwise, the regular clamp gradient is used:
//
//         { 1 if min <= x <= max
// grad =  {
//		   { 0 otherwise
func Clamp(x *G.Node, min, max interface{}, passGradient bool) (*G.Node,
	error) {
	op, err := newClamp(min, max, passGradient)
	if err != nil {
		return nil, fmt.Errorf("clamp: %v", err)
	}

	return G.ApplyOp(op, x)
}

// LogSumExp calculates the log of the summation of exponentials of
// all logits along the given axis. The axis is removed from the
// output shape.
//
// Use this in place of Gorgonia's LogSumExp, which has the final sum
// and log interchanged, which is incorrect.
func LogSumExp(logits *G.Node, along int) (*G.Node, error) {
	shape := logits.Shape()
	if along < 0 || along >= len(shape) {
		return nil, fmt.Errorf("logSumExp: axis %v out of range for "+
			"shape %v", along, shape)
	}

	max, err := G.Max(logits, along)
	if err != nil {
		return nil, fmt.Errorf("logSumExp: %v", err)
	}

	// Keep the reduced axis with size 1 so that the max can be repeated
	// back to the shape of the logits
	keepDims := shape.Clone()
	keepDims[along] = 1
	expanded, err := G.Reshape(max, keepDims)
	if err != nil {
		return nil, fmt.Errorf("logSumExp: could not reshape max: %v", err)
	}
	if shape[along] > 1 {
		expanded, err = Repeat(expanded, along, shape[along])
		if err != nil {
			return nil, fmt.Errorf("logSumExp: %v", err)
		}
	}

	exponent := G.Must(G.Sub(logits, expanded))
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Add(max, log)
}

// RepeatRows tiles a (1, n) row into an (rows, n) matrix. It is the
// bias-broadcast used by dense layers.
func RepeatRows(row *G.Node, rows int) (*G.Node, error) {
	if row.Dims() != 2 || row.Shape()[0] != 1 {
		return nil, fmt.Errorf("repeatRows: expected shape (1, n) but got %v",
			row.Shape())
	}
	if rows == 1 {
		return row, nil
	}

	return Repeat(row, 0, rows)
}
