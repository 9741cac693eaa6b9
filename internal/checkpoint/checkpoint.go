// Package checkpoint reads and writes model parameter bundles.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"lfeval/internal/model"
)

// LoadError reports a checkpoint that cannot be read or does not fit the model.
type LoadError struct {
	Path     string
	Problems []string
	Err      error
}

func (err *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("checkpoint load failed")
	if err.Path != "" {
		fmt.Fprintf(&b, " (%s)", err.Path)
	}
	if err.Err != nil {
		fmt.Fprintf(&b, ": %v", err.Err)
	}
	if len(err.Problems) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(err.Problems, "; "))
	}
	return b.String()
}

func (err *LoadError) Unwrap() error { return err.Err }

// Tensor is one serialized parameter matrix in row-major order.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Checkpoint is a training-epoch marker plus learned parameters.
type Checkpoint struct {
	Epoch     int                `json:"epoch"`
	StateDict map[string]Tensor  `json:"state_dict"`
	// LogVars holds the uncertainty log-variance per stream, when trained with one.
	LogVars   map[string]float64 `json:"log_vars,omitempty"`
	path      string
}

// Path returns the file the checkpoint was read from.
func (c *Checkpoint) Path() string { return c.path }

// Load reads a JSON checkpoint. Unknown top-level fields are rejected.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var ckpt Checkpoint
	if err := decoder.Decode(&ckpt); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("parse: %w", err)}
	}
	if ckpt.Epoch < 0 {
		return nil, &LoadError{Path: path, Problems: []string{fmt.Sprintf("negative epoch %d", ckpt.Epoch)}}
	}
	if len(ckpt.StateDict) == 0 {
		return nil, &LoadError{Path: path, Problems: []string{"state_dict is empty"}}
	}
	ckpt.path = path
	return &ckpt, nil
}

// Apply checks every parameter against the model and installs them.
// All name and shape problems are reported together before the model is touched.
func (c *Checkpoint) Apply(m model.Model) error {
	shapes := m.ParameterShapes()
	var problems []string
	for _, name := range sortedKeys(shapes) {
		tensor, ok := c.StateDict[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing parameter %q", name))
			continue
		}
		want := shapes[name]
		if len(tensor.Shape) != 2 || tensor.Shape[0] != want[0] || tensor.Shape[1] != want[1] {
			problems = append(problems, fmt.Sprintf("parameter %q has shape %v, model expects [%d %d]", name, tensor.Shape, want[0], want[1]))
			continue
		}
		if len(tensor.Data) != want[0]*want[1] {
			problems = append(problems, fmt.Sprintf("parameter %q has %d values, shape needs %d", name, len(tensor.Data), want[0]*want[1]))
		}
	}
	for _, name := range sortedKeys(c.StateDict) {
		if _, ok := shapes[name]; !ok {
			problems = append(problems, fmt.Sprintf("unexpected parameter %q", name))
		}
	}
	if len(problems) > 0 {
		return &LoadError{Path: c.path, Problems: problems}
	}

	params := make(map[string]*mat.Dense, len(c.StateDict))
	for name, tensor := range c.StateDict {
		params[name] = mat.NewDense(tensor.Shape[0], tensor.Shape[1], append([]float64(nil), tensor.Data...))
	}
	if err := m.LoadParameters(params); err != nil {
		return &LoadError{Path: c.path, Err: err}
	}
	return nil
}

// FromParameters packs model parameters into a checkpoint.
func FromParameters(epoch int, params map[string]*mat.Dense) *Checkpoint {
	dict := make(map[string]Tensor, len(params))
	for name, p := range params {
		r, c := p.Dims()
		data := make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			data = append(data, p.RawRowView(i)...)
		}
		dict[name] = Tensor{Shape: []int{r, c}, Data: data}
	}
	return &Checkpoint{Epoch: epoch, StateDict: dict}
}

// Save writes the checkpoint to path through a temporary file and a rename.
func Save(path string, ckpt *Checkpoint) error {
	if ckpt == nil {
		return fmt.Errorf("checkpoint is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(ckpt); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
