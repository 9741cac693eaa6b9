package dataset

import "fmt"

// AlignmentError reports an example whose helper alignment data is missing or inconsistent.
// It signals a data-pipeline defect and aborts the run.
type AlignmentError struct {
	ExampleID string
	Reason    string
}

// Error returns a readable message for the alignment failure.
func (err *AlignmentError) Error() string {
	return fmt.Sprintf("alignment error: example %q: %s", err.ExampleID, err.Reason)
}

// HelperStore is a read-only lookup from example id to helper record.
type HelperStore struct {
	records map[string]HelperRecord
}

// NewHelperStore indexes records by id. Duplicate ids are rejected.
func NewHelperStore(records []HelperRecord) (*HelperStore, error) {
	store := &HelperStore{records: make(map[string]HelperRecord, len(records))}
	for i, record := range records {
		if record.ID == "" {
			return nil, fmt.Errorf("helper record %d: id is required", i)
		}
		if _, exists := store.records[record.ID]; exists {
			return nil, fmt.Errorf("helper record %d: duplicate id %q", i, record.ID)
		}
		if record.DecodeLength < 0 || record.InputLength < 0 {
			return nil, fmt.Errorf("helper record %q: lengths must be >= 0", record.ID)
		}
		store.records[record.ID] = record
	}
	return store, nil
}

// Lookup returns the record for id, or an *AlignmentError when it is absent.
func (s *HelperStore) Lookup(id string) (HelperRecord, error) {
	if s == nil {
		return HelperRecord{}, &AlignmentError{ExampleID: id, Reason: "no helper store"}
	}
	record, ok := s.records[id]
	if !ok {
		return HelperRecord{}, &AlignmentError{ExampleID: id, Reason: "missing from helper store"}
	}
	return record, nil
}

// Len returns the number of records.
func (s *HelperStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// CheckAligned verifies that each example's helper record matches it: the
// input length equals len(Input) and the decode length counts the logical form
// plus its [START] and [END] markers. Examples without a record are left to Lookup.
func (s *HelperStore) CheckAligned(examples []Example) error {
	if s == nil {
		return nil
	}
	for _, ex := range examples {
		record, ok := s.records[ex.ID]
		if !ok {
			continue
		}
		if record.InputLength != len(ex.Input) {
			return &AlignmentError{
				ExampleID: ex.ID,
				Reason:    fmt.Sprintf("helper input length %d, example has %d input tokens", record.InputLength, len(ex.Input)),
			}
		}
		if want := len(ex.LogicalForm) + 2; record.DecodeLength != want {
			return &AlignmentError{
				ExampleID: ex.ID,
				Reason:    fmt.Sprintf("helper decode length %d, example needs %d", record.DecodeLength, want),
			}
		}
	}
	return nil
}
