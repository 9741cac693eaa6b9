// Package target reconstructs entity-pointer ground truth from helper alignment records.
package target

import (
	"fmt"

	"lfeval/internal/dataset"
	"lfeval/internal/tensor"
	"lfeval/internal/vocab"
)

// EntityBuilder resolves helper records into entity-pointer indices.
// Pointer indices into the input context are offset by the entity vocabulary size, so
// context index c becomes Offset()+c and the reserved symbols keep their own indices.
type EntityBuilder struct {
	helpers *dataset.HelperStore
	vocab   *vocab.Vocabulary
}

// NewEntityBuilder binds a helper store to the entity-pointer vocabulary.
func NewEntityBuilder(helpers *dataset.HelperStore, entityVocab *vocab.Vocabulary) *EntityBuilder {
	return &EntityBuilder{helpers: helpers, vocab: entityVocab}
}

// Offset returns the index of the first input-context pointer.
func (b *EntityBuilder) Offset() int {
	return b.vocab.Len()
}

// Build returns a (len(ids), timeLen) tensor of entity targets.
// Positions at or beyond an example's decode length are PAD, positions without a mention are NA.
func (b *EntityBuilder) Build(ids []string, timeLen int) (tensor.Ints, error) {
	out := tensor.NewInts(len(ids), timeLen, b.vocab.Pad())
	for i, id := range ids {
		record, err := b.helpers.Lookup(id)
		if err != nil {
			return nil, err
		}
		if err := b.check(record); err != nil {
			return nil, err
		}
		if record.DecodeLength > timeLen {
			return nil, &dataset.AlignmentError{
				ExampleID: id,
				Reason:    fmt.Sprintf("decode length %d exceeds batch time length %d", record.DecodeLength, timeLen),
			}
		}
		for p := 0; p < record.DecodeLength; p++ {
			out[i][p] = b.resolve(record, p)
		}
	}
	return out, nil
}

// Gold returns the entity stream of one example aligned with its logical form,
// that is decode positions 1..DecodeLength-2 without the [START] and [END] slots.
func (b *EntityBuilder) Gold(id string) ([]int, error) {
	record, err := b.helpers.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := b.check(record); err != nil {
		return nil, err
	}
	if record.DecodeLength < 2 {
		return []int{}, nil
	}
	gold := make([]int, 0, record.DecodeLength-2)
	for p := 1; p < record.DecodeLength-1; p++ {
		gold = append(gold, b.resolve(record, p))
	}
	return gold, nil
}

func (b *EntityBuilder) resolve(record dataset.HelperRecord, position int) int {
	if c, ok := record.Mentions[position]; ok {
		return b.Offset() + c
	}
	return b.vocab.NA()
}

func (b *EntityBuilder) check(record dataset.HelperRecord) error {
	for position, c := range record.Mentions {
		if position < 0 || position >= record.DecodeLength {
			return &dataset.AlignmentError{
				ExampleID: record.ID,
				Reason:    fmt.Sprintf("mention at decode position %d outside decode length %d", position, record.DecodeLength),
			}
		}
		if c < 0 || c >= record.InputLength {
			return &dataset.AlignmentError{
				ExampleID: record.ID,
				Reason:    fmt.Sprintf("mention at decode position %d points at input index %d outside input length %d", position, c, record.InputLength),
			}
		}
	}
	return nil
}
