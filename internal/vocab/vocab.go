// Package vocab maps the symbols of each model stream to integer indices and back.
package vocab

import (
	"fmt"
	"strings"
)

// Reserved symbols shared by all vocabularies.
const (
	PadToken   = "[PAD]"
	UnkToken   = "[UNK]"
	StartToken = "[START]"
	EndToken   = "[END]"
	NAToken    = "NA"
)

// Vocabulary is an ordered, read-only symbol table.
type Vocabulary struct {
	itos []string
	stoi map[string]int
}

// New builds a vocabulary from ordered symbols. Duplicates and blank symbols are rejected.
func New(symbols []string) (*Vocabulary, error) {
	v := &Vocabulary{
		itos: make([]string, 0, len(symbols)),
		stoi: make(map[string]int, len(symbols)),
	}
	for i, symbol := range symbols {
		if strings.TrimSpace(symbol) == "" {
			return nil, fmt.Errorf("symbol %d is blank", i)
		}
		if _, exists := v.stoi[symbol]; exists {
			return nil, fmt.Errorf("duplicate symbol %q", symbol)
		}
		v.stoi[symbol] = len(v.itos)
		v.itos = append(v.itos, symbol)
	}
	return v, nil
}

// Len returns the number of symbols.
func (v *Vocabulary) Len() int {
	return len(v.itos)
}

// Lookup returns the index of a symbol.
func (v *Vocabulary) Lookup(symbol string) (int, bool) {
	idx, ok := v.stoi[symbol]
	return idx, ok
}

// Index returns the index of a symbol, falling back to [UNK].
func (v *Vocabulary) Index(symbol string) int {
	if idx, ok := v.stoi[symbol]; ok {
		return idx
	}
	return v.stoi[UnkToken]
}

// Symbol returns the symbol at idx, or [UNK] when idx is out of range.
func (v *Vocabulary) Symbol(idx int) string {
	if idx < 0 || idx >= len(v.itos) {
		return UnkToken
	}
	return v.itos[idx]
}

// Pad returns the [PAD] index.
func (v *Vocabulary) Pad() int { return v.stoi[PadToken] }

// Start returns the [START] index.
func (v *Vocabulary) Start() int { return v.stoi[StartToken] }

// End returns the [END] index.
func (v *Vocabulary) End() int { return v.stoi[EndToken] }

// NA returns the no-entity / no-pointer index.
func (v *Vocabulary) NA() int { return v.stoi[NAToken] }

// Numericalize maps symbols to indices.
func (v *Vocabulary) Numericalize(symbols []string) []int {
	out := make([]int, len(symbols))
	for i, symbol := range symbols {
		out[i] = v.Index(symbol)
	}
	return out
}

// Symbols returns a copy of the ordered symbol list.
func (v *Vocabulary) Symbols() []string {
	return append([]string(nil), v.itos...)
}

// require reports the reserved symbols missing from v.
func (v *Vocabulary) require(symbols ...string) []string {
	var missing []string
	for _, symbol := range symbols {
		if _, ok := v.stoi[symbol]; !ok {
			missing = append(missing, symbol)
		}
	}
	return missing
}
