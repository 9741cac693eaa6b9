package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type examplesFile struct {
	Examples []Example `json:"examples" yaml:"examples"`
}

type helpersFile struct {
	Records []HelperRecord `json:"records" yaml:"records"`
}

// LoadExamples reads examples from a .json, .jsonl or YAML file and validates them.
func LoadExamples(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read examples: %w", err)
	}
	var examples []Example
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		examples, err = decodeJSONLines[Example](data)
	case ".json":
		var file examplesFile
		err = decodeJSON(data, &file)
		examples = file.Examples
	default:
		var file examplesFile
		err = decodeYAML(data, &file)
		examples = file.Examples
	}
	if err != nil {
		return nil, fmt.Errorf("parse examples %s: %w", filepath.Base(path), err)
	}
	if err := ValidateExamples(examples); err != nil {
		return nil, err
	}
	return examples, nil
}

// LoadHelpers reads helper records from a .json, .jsonl or YAML file into a store.
func LoadHelpers(path string) (*HelperStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read helpers: %w", err)
	}
	var records []HelperRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		records, err = decodeJSONLines[HelperRecord](data)
	case ".json":
		var file helpersFile
		err = decodeJSON(data, &file)
		records = file.Records
	default:
		var file helpersFile
		err = decodeYAML(data, &file)
		records = file.Records
	}
	if err != nil {
		return nil, fmt.Errorf("parse helpers %s: %w", filepath.Base(path), err)
	}
	return NewHelperStore(records)
}

// LoadPartition loads the examples and helper records of one named partition.
func LoadPartition(name, examplesPath, helpersPath string) (Partition, error) {
	examples, err := LoadExamples(examplesPath)
	if err != nil {
		return Partition{}, fmt.Errorf("partition %s: %w", name, err)
	}
	helpers, err := LoadHelpers(helpersPath)
	if err != nil {
		return Partition{}, fmt.Errorf("partition %s: %w", name, err)
	}
	if err := helpers.CheckAligned(examples); err != nil {
		return Partition{}, fmt.Errorf("partition %s: %w", name, err)
	}
	return Partition{Name: name, Examples: examples, Helpers: helpers}, nil
}

func decodeJSON(data []byte, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple documents are not supported")
		}
		return err
	}
	return nil
}

func decodeYAML(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple documents are not supported")
		}
		return err
	}
	return nil
}

func decodeJSONLines[T any](data []byte) ([]T, error) {
	var out []T
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var item T
		decoder := json.NewDecoder(bytes.NewReader(line))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&item); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
