package dataset

import (
	"fmt"

	"lfeval/internal/tensor"
	"lfeval/internal/vocab"
)

// Batch is a fixed group of numericalized, padded examples.
// LogicalForm is wrapped in [START]/[END]; the pointer streams are wrapped in NA so that
// every decode-aligned field shares the same time dimension.
type Batch struct {
	IDs              []string
	QuestionTypes    []string
	Input            tensor.Ints
	LogicalForm      tensor.Ints
	PredicatePointer tensor.Ints
	TypePointer      tensor.Ints
	EntityPointer    tensor.Ints
}

// Size returns the number of examples in the batch.
func (b Batch) Size() int {
	return len(b.IDs)
}

// NewBatch numericalizes and pads examples.
func NewBatch(examples []Example, vocabs vocab.Set) (Batch, error) {
	if len(examples) == 0 {
		return Batch{}, fmt.Errorf("batch is empty")
	}
	maxInput, maxDecode := 0, 0
	for _, example := range examples {
		if err := checkAligned(example); err != nil {
			return Batch{}, err
		}
		maxInput = max(maxInput, len(example.Input))
		maxDecode = max(maxDecode, len(example.LogicalForm)+2)
	}

	size := len(examples)
	batch := Batch{
		IDs:              make([]string, size),
		QuestionTypes:    make([]string, size),
		Input:            tensor.NewInts(size, maxInput, vocabs.Input.Pad()),
		LogicalForm:      tensor.NewInts(size, maxDecode, vocabs.LogicalForm.Pad()),
		PredicatePointer: tensor.NewInts(size, maxDecode, vocabs.PredicatePointer.Pad()),
		TypePointer:      tensor.NewInts(size, maxDecode, vocabs.TypePointer.Pad()),
		EntityPointer:    tensor.NewInts(size, maxDecode, vocabs.EntityPointer.Pad()),
	}
	for i, example := range examples {
		batch.IDs[i] = example.ID
		batch.QuestionTypes[i] = example.QuestionType
		copy(batch.Input[i], vocabs.Input.Numericalize(example.Input))

		lf := vocabs.LogicalForm
		fill(batch.LogicalForm[i], lf.Start(), lf.Numericalize(example.LogicalForm), lf.End())
		for _, stream := range []struct {
			row     []int
			v       *vocab.Vocabulary
			symbols []string
		}{
			{batch.PredicatePointer[i], vocabs.PredicatePointer, example.PredicatePointer},
			{batch.TypePointer[i], vocabs.TypePointer, example.TypePointer},
			{batch.EntityPointer[i], vocabs.EntityPointer, example.EntityPointer},
		} {
			fill(stream.row, stream.v.NA(), stream.v.Numericalize(stream.symbols), stream.v.NA())
		}
	}
	return batch, nil
}

// fill writes open, body, end into the head of row and leaves the padded tail untouched.
func fill(row []int, open int, body []int, end int) {
	row[0] = open
	copy(row[1:], body)
	row[len(body)+1] = end
}

func checkAligned(example Example) error {
	if len(example.LogicalForm) == 0 {
		return fmt.Errorf("example %q: logical_form is empty", example.ID)
	}
	streams := map[string][]string{
		"predicate_pointer": example.PredicatePointer,
		"type_pointer":      example.TypePointer,
		"entity_pointer":    example.EntityPointer,
	}
	for _, name := range []string{"predicate_pointer", "type_pointer", "entity_pointer"} {
		if got := len(streams[name]); got != len(example.LogicalForm) {
			return fmt.Errorf("example %q: %s has %d symbols, logical_form has %d", example.ID, name, got, len(example.LogicalForm))
		}
	}
	return nil
}
