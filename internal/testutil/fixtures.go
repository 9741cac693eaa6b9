package testutil

import (
	"testing"

	"lfeval/internal/dataset"
	"lfeval/internal/vocab"
)

// VocabFile returns a small vocabulary layout shared by package tests.
// The entity-pointer vocabulary holds only reserved symbols, so context pointers start at index 3.
func VocabFile() vocab.File {
	return vocab.File{
		Input:            []string{vocab.PadToken, vocab.UnkToken, "who", "is", "the", "president", "of", "france", "usa", "?"},
		LogicalForm:      []string{vocab.PadToken, vocab.UnkToken, vocab.StartToken, vocab.EndToken, "find", "count", "filter_type", "entity", "relation", "type"},
		PredicatePointer: []string{vocab.PadToken, vocab.UnkToken, vocab.NAToken, "P6", "P17", "P31"},
		TypePointer:      []string{vocab.PadToken, vocab.UnkToken, vocab.NAToken, "Q5", "Q6256"},
		EntityPointer:    []string{vocab.PadToken, vocab.UnkToken, vocab.NAToken},
	}
}

// Vocabs builds the shared vocabulary set.
func Vocabs(t testing.TB) vocab.Set {
	t.Helper()
	set, err := vocab.FromFile(VocabFile())
	if err != nil {
		t.Fatalf("build vocabs: %v", err)
	}
	return set
}

// Example builds a fully annotated example. The entity stream marks a mention at the
// third logical-form token.
func Example(id, questionType string) dataset.Example {
	return dataset.Example{
		ID:               id,
		QuestionType:     questionType,
		Input:            []string{"who", "is", "the", "president", "of", "france", "?"},
		LogicalForm:      []string{"find", "relation", "entity"},
		PredicatePointer: []string{vocab.NAToken, "P6", vocab.NAToken},
		TypePointer:      []string{"Q5", vocab.NAToken, vocab.NAToken},
		EntityPointer:    []string{vocab.NAToken, vocab.NAToken, "france"},
	}
}

// Helper builds the helper record matching Example: the entity token at decode position 3
// points at input index 5 ("france").
func Helper(id string) dataset.HelperRecord {
	return dataset.HelperRecord{
		ID:           id,
		InputLength:  7,
		DecodeLength: 5,
		Mentions:     map[int]int{3: 5},
	}
}

// HelperFor builds the mention of Helper with lengths taken from ex.
func HelperFor(ex dataset.Example) dataset.HelperRecord {
	record := Helper(ex.ID)
	record.InputLength = len(ex.Input)
	record.DecodeLength = len(ex.LogicalForm) + 2
	if record.DecodeLength <= 3 || record.InputLength <= 5 {
		record.Mentions = nil
	}
	return record
}

// HelperStore indexes helper records for the given ids.
func HelperStore(t testing.TB, ids ...string) *dataset.HelperStore {
	t.Helper()
	records := make([]dataset.HelperRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, Helper(id))
	}
	store, err := dataset.NewHelperStore(records)
	if err != nil {
		t.Fatalf("build helper store: %v", err)
	}
	return store
}
