package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"lfeval/internal/tensor"
	"lfeval/internal/vocab"
)

// Parameter names of the reference model.
const (
	EncoderEmbedding   = "encoder.embedding"
	EncoderPosition    = "encoder.position"
	EncoderEntity      = "encoder.entity"
	EncoderWeight      = "encoder.weight"
	DecoderEmbedding   = "decoder.embedding"
	DecoderPosition    = "decoder.position"
	DecoderWeight      = "decoder.weight"
	LogicalFormWeight  = "logical_form.weight"
	PredicateWeight    = "predicate_pointer.weight"
	TypeWeight         = "type_pointer.weight"
	EntityWeight       = "entity_pointer.weight"
	EntityPointerQuery = "entity_pointer.query"
)

const (
	maskedScore = -1e9
	initScale   = 0.1
)

// Config sizes the reference model.
type Config struct {
	DModel       int
	MaxPositions int
	Dropout      float64
	Seed         uint64
}

type sizes struct {
	input, logicalForm, predicate, typ, entity int
}

// Seq2Seq is a single-layer encoder/decoder over gonum matrices.
//
// The encoder adds token, position and entity-annotation embeddings and applies one tanh projection.
// The decoder state at step t is the running mean of the prefix embeddings, attends over the encoder
// output and feeds four heads. The entity head concatenates reserved-symbol logits with pointer
// scores over the input positions, so a context pointer c has index entityVocab.Len()+c.
type Seq2Seq struct {
	cfg      Config
	sizes    sizes
	inputPad int
	entPad   int
	entNA    int
	params   map[string]*mat.Dense
	mode     Mode
	rng      *rand.Rand
}

var _ Model = (*Seq2Seq)(nil)

// NewSeq2Seq builds a reference model with small random parameters drawn from the seeded RNG.
func NewSeq2Seq(vocabs vocab.Set, cfg Config) (*Seq2Seq, error) {
	if cfg.DModel <= 0 {
		return nil, fmt.Errorf("d_model must be positive, got %d", cfg.DModel)
	}
	if cfg.MaxPositions <= 0 {
		return nil, fmt.Errorf("max_positions must be positive, got %d", cfg.MaxPositions)
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, fmt.Errorf("dropout must be in [0, 1), got %v", cfg.Dropout)
	}
	m := &Seq2Seq{
		cfg: cfg,
		sizes: sizes{
			input:       vocabs.Input.Len(),
			logicalForm: vocabs.LogicalForm.Len(),
			predicate:   vocabs.PredicatePointer.Len(),
			typ:         vocabs.TypePointer.Len(),
			entity:      vocabs.EntityPointer.Len(),
		},
		inputPad: vocabs.Input.Pad(),
		entPad:   vocabs.EntityPointer.Pad(),
		entNA:    vocabs.EntityPointer.NA(),
		params:   map[string]*mat.Dense{},
		mode:     Train,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	for _, name := range m.names() {
		shape := m.ParameterShapes()[name]
		data := make([]float64, shape[0]*shape[1])
		for i := range data {
			data[i] = m.rng.NormFloat64() * initScale
		}
		m.params[name] = mat.NewDense(shape[0], shape[1], data)
	}
	return m, nil
}

// Mode returns the current mode.
func (m *Seq2Seq) Mode() Mode { return m.mode }

// SetMode switches between Train and Eval.
func (m *Seq2Seq) SetMode(mode Mode) { m.mode = mode }

// ParameterShapes returns the expected (rows, cols) of every parameter.
func (m *Seq2Seq) ParameterShapes() map[string][2]int {
	d, p := m.cfg.DModel, m.cfg.MaxPositions
	return map[string][2]int{
		EncoderEmbedding:   {m.sizes.input, d},
		EncoderPosition:    {p, d},
		EncoderEntity:      {m.sizes.entity, d},
		EncoderWeight:      {d, d},
		DecoderEmbedding:   {m.sizes.logicalForm, d},
		DecoderPosition:    {p, d},
		DecoderWeight:      {2 * d, d},
		LogicalFormWeight:  {d, m.sizes.logicalForm},
		PredicateWeight:    {d, m.sizes.predicate},
		TypeWeight:         {d, m.sizes.typ},
		EntityWeight:       {d, m.sizes.entity},
		EntityPointerQuery: {d, d},
	}
}

// Parameters returns copies of the current parameters.
func (m *Seq2Seq) Parameters() map[string]*mat.Dense {
	out := make(map[string]*mat.Dense, len(m.params))
	for name, p := range m.params {
		out[name] = mat.DenseCopyOf(p)
	}
	return out
}

// LoadParameters replaces every parameter. The set of names and every shape must match exactly.
func (m *Seq2Seq) LoadParameters(params map[string]*mat.Dense) error {
	shapes := m.ParameterShapes()
	for name := range params {
		if _, ok := shapes[name]; !ok {
			return fmt.Errorf("unexpected parameter %q", name)
		}
	}
	for _, name := range m.names() {
		p, ok := params[name]
		if !ok || p == nil {
			return fmt.Errorf("missing parameter %q", name)
		}
		r, c := p.Dims()
		if want := shapes[name]; r != want[0] || c != want[1] {
			return fmt.Errorf("parameter %q has shape [%d %d], want [%d %d]", name, r, c, want[0], want[1])
		}
	}
	for _, name := range m.names() {
		m.params[name] = mat.DenseCopyOf(params[name])
	}
	return nil
}

// Encode embeds one input sequence. entityPointer is the example's entity annotation stream.
func (m *Seq2Seq) Encode(input []int, entityPointer []int) (*Memory, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("encode: empty input")
	}
	if len(input) > m.cfg.MaxPositions {
		return nil, fmt.Errorf("encode: input length %d exceeds max positions %d", len(input), m.cfg.MaxPositions)
	}
	entity, err := m.entityMemory(entityPointer)
	if err != nil {
		return nil, err
	}
	emb, pos := m.params[EncoderEmbedding], m.params[EncoderPosition]
	x := mat.NewDense(len(input), m.cfg.DModel, nil)
	mask := make([]bool, len(input))
	for i, tok := range input {
		if tok < 0 || tok >= m.sizes.input {
			return nil, fmt.Errorf("encode: input index %d out of range [0, %d)", tok, m.sizes.input)
		}
		row := x.RawRowView(i)
		floats.Add(row, emb.RawRowView(tok))
		floats.Add(row, pos.RawRowView(i))
		floats.Add(row, entity)
		mask[i] = tok == m.inputPad
	}
	var hidden mat.Dense
	hidden.Mul(x, m.params[EncoderWeight])
	hidden.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, &hidden)
	return &Memory{Hidden: &hidden, Mask: mask}, nil
}

// Step returns the logits at the last prefix position.
func (m *Seq2Seq) Step(mem *Memory, prefix []int) (StepLogits, error) {
	h, err := m.decode(mem, prefix)
	if err != nil {
		return StepLogits{}, err
	}
	rows, d := h.Dims()
	last := h.Slice(rows-1, rows, 0, d).(*mat.Dense)
	out := m.heads(mem, last)
	return StepLogits{
		LogicalForm:      append([]float64(nil), out.LogicalForm.RawRowView(0)...),
		PredicatePointer: append([]float64(nil), out.PredicatePointer.RawRowView(0)...),
		TypePointer:      append([]float64(nil), out.TypePointer.RawRowView(0)...),
		EntityPointer:    append([]float64(nil), out.EntityPointer.RawRowView(0)...),
	}, nil
}

// Forward runs teacher-forced decoding over a batch and returns flattened logits.
// Row b*T+t of every output holds the logits for example b at decoder position t.
func (m *Seq2Seq) Forward(input, decoderInput, entityPointer tensor.Ints) (Output, error) {
	for _, field := range []tensor.Ints{input, decoderInput, entityPointer} {
		if err := field.Validate(); err != nil {
			return Output{}, fmt.Errorf("forward: %w", err)
		}
	}
	batch, width := input.Shape()
	if r, _ := decoderInput.Shape(); r != batch {
		return Output{}, fmt.Errorf("forward: decoder input has %d rows, input has %d", r, batch)
	}
	if r, _ := entityPointer.Shape(); r != batch {
		return Output{}, fmt.Errorf("forward: entity pointer has %d rows, input has %d", r, batch)
	}
	_, steps := decoderInput.Shape()
	if batch == 0 || steps == 0 {
		return Output{}, fmt.Errorf("forward: empty batch")
	}

	rows := batch * steps
	out := Output{
		LogicalForm:      mat.NewDense(rows, m.sizes.logicalForm, nil),
		PredicatePointer: mat.NewDense(rows, m.sizes.predicate, nil),
		TypePointer:      mat.NewDense(rows, m.sizes.typ, nil),
		EntityPointer:    mat.NewDense(rows, m.sizes.entity+width, nil),
	}
	for b := 0; b < batch; b++ {
		mem, err := m.Encode(input[b], entityPointer[b])
		if err != nil {
			return Output{}, fmt.Errorf("forward: example %d: %w", b, err)
		}
		h, err := m.decode(mem, decoderInput[b])
		if err != nil {
			return Output{}, fmt.Errorf("forward: example %d: %w", b, err)
		}
		logits := m.heads(mem, h)
		lo, hi := b*steps, (b+1)*steps
		for _, pair := range []struct{ dst, src *mat.Dense }{
			{out.LogicalForm, logits.LogicalForm},
			{out.PredicatePointer, logits.PredicatePointer},
			{out.TypePointer, logits.TypePointer},
			{out.EntityPointer, logits.EntityPointer},
		} {
			_, cols := pair.dst.Dims()
			pair.dst.Slice(lo, hi, 0, cols).(*mat.Dense).Copy(pair.src)
		}
	}
	return out, nil
}

func (m *Seq2Seq) names() []string {
	shapes := m.ParameterShapes()
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entityMemory averages the embeddings of annotated entities; PAD and NA carry no information.
func (m *Seq2Seq) entityMemory(entityPointer []int) ([]float64, error) {
	out := make([]float64, m.cfg.DModel)
	n := 0
	for _, tok := range entityPointer {
		if tok < 0 || tok >= m.sizes.entity {
			return nil, fmt.Errorf("encode: entity index %d out of range [0, %d)", tok, m.sizes.entity)
		}
		if tok == m.entPad || tok == m.entNA {
			continue
		}
		floats.Add(out, m.params[EncoderEntity].RawRowView(tok))
		n++
	}
	if n > 0 {
		floats.Scale(1/float64(n), out)
	}
	return out, nil
}

// decode returns one hidden row per prefix position.
func (m *Seq2Seq) decode(mem *Memory, prefix []int) (*mat.Dense, error) {
	if mem.Len() == 0 {
		return nil, fmt.Errorf("decode: empty memory")
	}
	if len(prefix) == 0 {
		return nil, fmt.Errorf("decode: empty prefix")
	}
	if len(prefix) > m.cfg.MaxPositions {
		return nil, fmt.Errorf("decode: prefix length %d exceeds max positions %d", len(prefix), m.cfg.MaxPositions)
	}
	d := m.cfg.DModel
	emb, pos := m.params[DecoderEmbedding], m.params[DecoderPosition]
	states := mat.NewDense(len(prefix), 2*d, nil)
	running := make([]float64, d)
	scores := make([]float64, mem.Len())
	for t, tok := range prefix {
		if tok < 0 || tok >= m.sizes.logicalForm {
			return nil, fmt.Errorf("decode: logical form index %d out of range [0, %d)", tok, m.sizes.logicalForm)
		}
		floats.Add(running, emb.RawRowView(tok))
		floats.Add(running, pos.RawRowView(t))
		row := states.RawRowView(t)
		floats.AddScaled(row[:d], 1/float64(t+1), running)
		m.attend(mem, row[:d], row[d:], scores)
	}
	var h mat.Dense
	h.Mul(states, m.params[DecoderWeight])
	h.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, &h)
	if m.mode == Train && m.cfg.Dropout > 0 {
		keep := 1 - m.cfg.Dropout
		h.Apply(func(_, _ int, v float64) float64 {
			if m.rng.Float64() >= keep {
				return 0
			}
			return v / keep
		}, &h)
	}
	return &h, nil
}

// attend writes the softmax-weighted sum of unmasked memory rows into ctx.
func (m *Seq2Seq) attend(mem *Memory, query, ctx, scores []float64) {
	scale := 1 / math.Sqrt(float64(m.cfg.DModel))
	best := math.Inf(-1)
	for i := range scores {
		if mem.Mask[i] {
			scores[i] = math.Inf(-1)
			continue
		}
		scores[i] = floats.Dot(query, mem.Hidden.RawRowView(i)) * scale
		best = math.Max(best, scores[i])
	}
	if math.IsInf(best, -1) {
		return
	}
	var total float64
	for i, s := range scores {
		if math.IsInf(s, -1) {
			scores[i] = 0
			continue
		}
		scores[i] = math.Exp(s - best)
		total += scores[i]
	}
	for i, w := range scores {
		if w != 0 {
			floats.AddScaled(ctx, w/total, mem.Hidden.RawRowView(i))
		}
	}
}

// heads projects hidden rows through the four output heads.
func (m *Seq2Seq) heads(mem *Memory, h *mat.Dense) Output {
	rows, _ := h.Dims()
	var lf, pred, typ, reserved, query, pointer mat.Dense
	lf.Mul(h, m.params[LogicalFormWeight])
	pred.Mul(h, m.params[PredicateWeight])
	typ.Mul(h, m.params[TypeWeight])
	reserved.Mul(h, m.params[EntityWeight])
	query.Mul(h, m.params[EntityPointerQuery])
	pointer.Mul(&query, mem.Hidden.T())
	for j, masked := range mem.Mask {
		if masked {
			for i := 0; i < rows; i++ {
				pointer.Set(i, j, maskedScore)
			}
		}
	}
	ent := mat.NewDense(rows, m.sizes.entity+mem.Len(), nil)
	ent.Slice(0, rows, 0, m.sizes.entity).(*mat.Dense).Copy(&reserved)
	ent.Slice(0, rows, m.sizes.entity, m.sizes.entity+mem.Len()).(*mat.Dense).Copy(&pointer)
	return Output{LogicalForm: &lf, PredicatePointer: &pred, TypePointer: &typ, EntityPointer: ent}
}
