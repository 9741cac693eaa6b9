// Package meter accumulates running metrics weighted by sample count.
package meter

// RunningAverage keeps a weighted running mean.
// The zero value is ready to use.
type RunningAverage struct {
	sum   float64
	count float64
}

// Update adds value with the given weight. For batched losses the weight is the batch size.
func (a *RunningAverage) Update(value, weight float64) {
	a.sum += value * weight
	a.count += weight
}

// Average returns the weighted mean, or 0 when nothing has been weighted in.
func (a *RunningAverage) Average() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}
