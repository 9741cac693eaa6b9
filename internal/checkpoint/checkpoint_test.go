package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"lfeval/internal/model"
	"lfeval/internal/testutil"
)

func newModel(t *testing.T, seed uint64) *model.Seq2Seq {
	t.Helper()
	m, err := model.NewSeq2Seq(testutil.Vocabs(t), model.Config{DModel: 4, MaxPositions: 8, Seed: seed})
	require.NoError(t, err)
	return m
}

// TestSaveLoadApplyRoundTrip verifies a saved model restores into a fresh one.
func TestSaveLoadApplyRoundTrip(t *testing.T) {
	source := newModel(t, 1)
	path := filepath.Join(t.TempDir(), "nested", "model.json")
	ckpt := FromParameters(12, source.Parameters())
	ckpt.LogVars = map[string]float64{"logical_form": 0.5}
	require.NoError(t, Save(path, ckpt))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Epoch)
	assert.Equal(t, path, loaded.Path())
	assert.Equal(t, map[string]float64{"logical_form": 0.5}, loaded.LogVars)

	target := newModel(t, 2)
	require.NoError(t, loaded.Apply(target))
	for name, p := range source.Parameters() {
		assert.True(t, mat.Equal(p, target.Parameters()[name]), name)
	}
}

// TestLoadReadsTopLevelLogVars verifies log-variances sit beside state_dict in the file.
func TestLoadReadsTopLevelLogVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	body := `{"epoch":4,"state_dict":{"a":{"shape":[1,1],"data":[0]}},"log_vars":{"logical_form":0.5,"entity_pointer":-0.25}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"logical_form": 0.5, "entity_pointer": -0.25}, loaded.LogVars)

	nested := filepath.Join(t.TempDir(), "nested.json")
	require.NoError(t, os.WriteFile(nested, []byte(`{"epoch":4,"state_dict":{"a":{"shape":[1,1],"data":[0]}},"loss":{"log_vars":{}}}`), 0o644))
	_, err = Load(nested)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

// TestApplyReportsEveryMismatch verifies structural problems are collected before loading.
func TestApplyReportsEveryMismatch(t *testing.T) {
	m := newModel(t, 1)
	before := m.Parameters()
	ckpt := FromParameters(3, m.Parameters())
	delete(ckpt.StateDict, model.DecoderWeight)
	ckpt.StateDict[model.EncoderWeight] = Tensor{Shape: []int{4, 5}, Data: make([]float64, 20)}
	ckpt.StateDict["decoder.bias"] = Tensor{Shape: []int{1, 4}, Data: make([]float64, 4)}

	err := ckpt.Apply(m)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Len(t, loadErr.Problems, 3)
	assert.Contains(t, err.Error(), `missing parameter "decoder.weight"`)
	assert.Contains(t, err.Error(), `unexpected parameter "decoder.bias"`)
	for name, p := range before {
		assert.True(t, mat.Equal(p, m.Parameters()[name]), name)
	}
}

// TestLoadRejectsBadFiles verifies unreadable or malformed checkpoints are LoadErrors.
func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	var loadErr *LoadError

	_, err := Load(filepath.Join(dir, "absent.json"))
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, os.ErrNotExist)

	cases := map[string]string{
		"garbage.json": "{not json",
		"extra.json":   `{"epoch":1,"state_dict":{"a":{"shape":[1,1],"data":[0]}},"optimizer":{}}`,
		"empty.json":   `{"epoch":1,"state_dict":{}}`,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Load(path)
		assert.ErrorAs(t, err, &loadErr, name)
	}
}
