// Package dataset loads evaluation examples and their helper alignment records and groups them into padded batches.
package dataset

// Example is one conversational turn with its gold annotations.
// The pointer streams are aligned with LogicalForm, one symbol per logical-form token.
type Example struct {
	ID               string   `json:"id" yaml:"id"`
	QuestionType     string   `json:"question_type" yaml:"question_type"`
	Input            []string `json:"input" yaml:"input"`
	LogicalForm      []string `json:"logical_form,omitempty" yaml:"logical_form,omitempty"`
	PredicatePointer []string `json:"predicate_pointer,omitempty" yaml:"predicate_pointer,omitempty"`
	TypePointer      []string `json:"type_pointer,omitempty" yaml:"type_pointer,omitempty"`
	EntityPointer    []string `json:"entity_pointer,omitempty" yaml:"entity_pointer,omitempty"`
}

// HelperRecord aligns decode positions of an example with its input context.
// Positions count the [START] marker, so the first logical-form token sits at position 1.
type HelperRecord struct {
	ID           string      `json:"id" yaml:"id"`
	InputLength  int         `json:"input_length" yaml:"input_length"`
	DecodeLength int         `json:"decode_length" yaml:"decode_length"`
	Mentions     map[int]int `json:"mentions,omitempty" yaml:"mentions,omitempty"`
}

// Partition is a named set of examples with the helper records that belong to them.
type Partition struct {
	Name     string
	Examples []Example
	Helpers  *HelperStore
}
