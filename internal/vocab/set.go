package vocab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"lfeval/internal/task"
)

// Set holds one vocabulary per model stream plus the input vocabulary.
type Set struct {
	Input            *Vocabulary
	LogicalForm      *Vocabulary
	PredicatePointer *Vocabulary
	TypePointer      *Vocabulary
	EntityPointer    *Vocabulary
}

// File is the on-disk vocabulary layout.
type File struct {
	Input            []string `json:"input" yaml:"input"`
	LogicalForm      []string `json:"logical_form" yaml:"logical_form"`
	PredicatePointer []string `json:"predicate_pointer" yaml:"predicate_pointer"`
	TypePointer      []string `json:"type_pointer" yaml:"type_pointer"`
	EntityPointer    []string `json:"entity_pointer" yaml:"entity_pointer"`
}

// ForTask returns the vocabulary of a single stream.
func (s Set) ForTask(t task.Task) *Vocabulary {
	switch t {
	case task.LogicalForm:
		return s.LogicalForm
	case task.PredicatePointer:
		return s.PredicatePointer
	case task.TypePointer:
		return s.TypePointer
	case task.EntityPointer:
		return s.EntityPointer
	default:
		return nil
	}
}

// Load reads a vocabulary set from a JSON or YAML file.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read vocab: %w", err)
	}
	file, err := parseFile(data, path)
	if err != nil {
		return Set{}, err
	}
	return FromFile(file)
}

// FromFile builds and validates a vocabulary set.
func FromFile(file File) (Set, error) {
	var set Set
	var problems []string
	build := func(name string, symbols []string, reserved ...string) *Vocabulary {
		v, err := New(symbols)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			return nil
		}
		if missing := v.require(reserved...); len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("%s: missing reserved symbols %s", name, strings.Join(missing, ", ")))
		}
		return v
	}
	set.Input = build("input", file.Input, PadToken, UnkToken)
	set.LogicalForm = build("logical_form", file.LogicalForm, PadToken, UnkToken, StartToken, EndToken)
	set.PredicatePointer = build("predicate_pointer", file.PredicatePointer, PadToken, UnkToken, NAToken)
	set.TypePointer = build("type_pointer", file.TypePointer, PadToken, UnkToken, NAToken)
	set.EntityPointer = build("entity_pointer", file.EntityPointer, PadToken, UnkToken, NAToken)
	if len(problems) > 0 {
		return Set{}, fmt.Errorf("invalid vocab: %s", strings.Join(problems, "; "))
	}
	return set, nil
}

func parseFile(data []byte, path string) (File, error) {
	var file File
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&file); err != nil {
			return File{}, fmt.Errorf("parse vocab json: %w", err)
		}
		return file, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return File{}, fmt.Errorf("parse vocab yaml: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return File{}, fmt.Errorf("parse vocab yaml: multiple documents are not supported")
		}
		return File{}, fmt.Errorf("parse vocab yaml: %w", err)
	}
	return file, nil
}
