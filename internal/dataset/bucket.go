package dataset

import (
	"fmt"
	"io"
	"sort"

	"lfeval/internal/vocab"
)

// BucketIterator yields batches of examples grouped by input length to keep padding small.
// Evaluation order is deterministic: examples are stably sorted by input length and never shuffled.
type BucketIterator struct {
	examples  []Example
	vocabs    vocab.Set
	batchSize int
	next      int
}

// NewBucketIterator sorts a copy of examples by input length.
func NewBucketIterator(examples []Example, vocabs vocab.Set, batchSize int) (*BucketIterator, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	sorted := append([]Example(nil), examples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Input) < len(sorted[j].Input)
	})
	return &BucketIterator{examples: sorted, vocabs: vocabs, batchSize: batchSize}, nil
}

// Next returns the next batch, or io.EOF once every example has been delivered.
func (it *BucketIterator) Next() (Batch, error) {
	if it.next >= len(it.examples) {
		return Batch{}, io.EOF
	}
	end := min(it.next+it.batchSize, len(it.examples))
	batch, err := NewBatch(it.examples[it.next:end], it.vocabs)
	if err != nil {
		return Batch{}, err
	}
	it.next = end
	return batch, nil
}

// Len returns the number of batches the iterator produces in total.
func (it *BucketIterator) Len() int {
	return (len(it.examples) + it.batchSize - 1) / it.batchSize
}
