// Package tensor holds the integer index tensors exchanged between batches, targets and losses.
package tensor

import "fmt"

// Ints is a row-major (batch, time) matrix of indices.
type Ints [][]int

// NewInts creates a rows x cols tensor filled with fill.
func NewInts(rows, cols, fill int) Ints {
	t := make(Ints, rows)
	for i := range t {
		row := make([]int, cols)
		if fill != 0 {
			for j := range row {
				row[j] = fill
			}
		}
		t[i] = row
	}
	return t
}

// Shape returns the dimensions of the tensor.
func (t Ints) Shape() (int, int) {
	if len(t) == 0 {
		return 0, 0
	}
	return len(t), len(t[0])
}

// Validate checks that every row has the same width.
func (t Ints) Validate() error {
	_, cols := t.Shape()
	for i, row := range t {
		if len(row) != cols {
			return fmt.Errorf("ragged tensor: row %d has %d columns, expected %d", i, len(row), cols)
		}
	}
	return nil
}

// DropLast returns t[:, :-1].
func (t Ints) DropLast() Ints {
	out := make(Ints, len(t))
	for i, row := range t {
		if len(row) == 0 {
			out[i] = []int{}
			continue
		}
		out[i] = append([]int(nil), row[:len(row)-1]...)
	}
	return out
}

// DropFirst returns t[:, 1:].
func (t Ints) DropFirst() Ints {
	out := make(Ints, len(t))
	for i, row := range t {
		if len(row) == 0 {
			out[i] = []int{}
			continue
		}
		out[i] = append([]int(nil), row[1:]...)
	}
	return out
}

// Flatten concatenates all rows, giving a (batch*time) vector.
func (t Ints) Flatten() []int {
	rows, cols := t.Shape()
	out := make([]int, 0, rows*cols)
	for _, row := range t {
		out = append(out, row...)
	}
	return out
}
