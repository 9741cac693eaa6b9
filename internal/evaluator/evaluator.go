// Package evaluator restores a trained checkpoint and measures it on the configured partitions.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"lfeval/internal/checkpoint"
	"lfeval/internal/config"
	"lfeval/internal/dataset"
	"lfeval/internal/loss"
	"lfeval/internal/meter"
	"lfeval/internal/model"
	"lfeval/internal/predict"
	"lfeval/internal/score"
	"lfeval/internal/spec"
	"lfeval/internal/target"
	"lfeval/internal/task"
	"lfeval/internal/vocab"
)

// ModelFactory builds an untrained model for a vocabulary set.
type ModelFactory func(vocabs vocab.Set, cfg spec.ModelConfig, seed uint64) (model.Model, error)

// Options carries the run dependencies. Zero values select defaults.
type Options struct {
	// Root resolves relative paths in the config.
	Root string
	// OutputDir overrides output.dir.
	OutputDir string
	// RunID is generated when empty.
	RunID    string
	Logger   *zap.SugaredLogger
	Observer Observer
	Now      func() time.Time
	NewModel ModelFactory
}

// Evaluator runs one evaluation described by a validated config.
type Evaluator struct {
	cfg      spec.Config
	root     string
	paths    OutputPaths
	log      *zap.SugaredLogger
	observer Observer
	now      func() time.Time
	newModel ModelFactory
}

// New prepares an evaluator. Run writes summary.json last, so a run directory
// without one (for example holding only logs) belongs to an aborted run.
func New(cfg spec.Config, opts Options) (*Evaluator, error) {
	runID := opts.RunID
	if runID == "" {
		id, err := NewRunID()
		if err != nil {
			return nil, err
		}
		runID = id
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = config.Resolve(opts.Root, cfg.Output.Dir)
	}
	paths, err := NewOutputPaths(outputDir, runID)
	if err != nil {
		return nil, err
	}
	ev := &Evaluator{
		cfg:      cfg,
		root:     opts.Root,
		paths:    paths,
		log:      opts.Logger,
		observer: opts.Observer,
		now:      opts.Now,
		newModel: opts.NewModel,
	}
	if ev.log == nil {
		ev.log = zap.NewNop().Sugar()
	}
	if ev.observer == nil {
		ev.observer = NopObserver{}
	}
	if ev.now == nil {
		ev.now = time.Now
	}
	if ev.newModel == nil {
		ev.newModel = NewSeq2Seq
	}
	return ev, nil
}

// NewSeq2Seq is the default ModelFactory.
func NewSeq2Seq(vocabs vocab.Set, cfg spec.ModelConfig, seed uint64) (model.Model, error) {
	m, err := model.NewSeq2Seq(vocabs, model.Config{
		DModel:       cfg.DModel,
		MaxPositions: cfg.MaxPositions,
		Dropout:      cfg.Dropout,
		Seed:         seed,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Paths returns where the run writes its outputs.
func (e *Evaluator) Paths() OutputPaths { return e.paths }

// Run executes the loss and scoring passes and writes the run outputs.
// Outputs are written only when every pass succeeds.
func (e *Evaluator) Run(ctx context.Context) (summary Summary, err error) {
	summary = Summary{
		RunID:      e.paths.RunID,
		StartedAt:  e.now().UTC(),
		Task:       e.cfg.Run.Task,
		LossPolicy: e.cfg.Loss.Policy,
		Seed:       e.cfg.Run.RandomSeed(),
		BatchSize:  e.cfg.Run.BatchSize,
	}
	defer func() { e.observer.OnRunEnd(summary, err) }()

	tk, err := task.Parse(e.cfg.Run.Task)
	if err != nil {
		return summary, err
	}
	scoreTasks, err := task.ParseStreams(e.cfg.Run.ScoreTasks)
	if err != nil {
		return summary, err
	}
	vocabs, err := vocab.Load(e.resolve(e.cfg.Data.Vocab))
	if err != nil {
		return summary, err
	}
	partitions, err := e.loadPartitions()
	if err != nil {
		return summary, err
	}
	e.log.Info("Loaders prepared.")

	m, err := e.newModel(vocabs, e.cfg.Model, e.cfg.Run.RandomSeed())
	if err != nil {
		return summary, fmt.Errorf("build model: %w", err)
	}
	ckptPath := e.resolve(e.cfg.Model.Checkpoint)
	e.log.Infof("=> loading checkpoint '%s'", ckptPath)
	ckpt, err := checkpoint.Load(ckptPath)
	if err != nil {
		return summary, err
	}
	if err := ckpt.Apply(m); err != nil {
		return summary, err
	}
	e.log.Infof("=> loaded checkpoint '%s' (epoch %d)", ckpt.Path(), ckpt.Epoch)
	summary.Checkpoint = CheckpointInfo{Path: ckpt.Path(), Epoch: ckpt.Epoch}

	criterion, err := e.criterion(tk, vocabs, ckpt)
	if err != nil {
		return summary, err
	}

	restore := model.EvalMode(m)
	defer restore()

	names := make([]string, 0, len(partitions))
	for _, p := range partitions {
		names = append(names, p.Name)
	}
	e.observer.OnRunStart(summary.RunID, names)

	scorers := map[string]*score.Scorer{}
	for i, pc := range e.cfg.Data.Partitions {
		part := partitions[i]
		ps := PartitionSummary{Name: part.Name, Examples: len(part.Examples)}
		if pc.Loss {
			avg, perTask, err := e.lossPass(ctx, m, vocabs, part, criterion)
			if err != nil {
				return summary, fmt.Errorf("%s loss: %w", part.Name, err)
			}
			ps.Loss = &avg
			ps.TaskLosses = perTask
			e.log.Infof("* %s Loss: %.4f", title(part.Name), avg)
			e.observer.OnLossDone(part.Name, avg)
		}
		if pc.Score {
			scorer, err := e.scorePass(ctx, m, vocabs, part, scoreTasks)
			if err != nil {
				return summary, fmt.Errorf("%s scoring: %w", part.Name, err)
			}
			table, err := scorer.Results()
			if err != nil {
				return summary, err
			}
			ps.Results = &table
			scorers[part.Name] = scorer
			e.logResults(part.Name, table)
		}
		summary.Partitions = append(summary.Partitions, ps)
	}
	summary.FinishedAt = e.now().UTC()

	for _, ps := range summary.Partitions {
		scorer, ok := scorers[ps.Name]
		if !ok {
			continue
		}
		if err := scorer.WriteResults(e.paths.ResultsPath(ps.Name)); err != nil {
			return summary, err
		}
		if err := scorer.WritePredictions(e.paths.PredictionsPath(ps.Name)); err != nil {
			return summary, err
		}
	}
	if err := WriteSummary(e.paths, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (e *Evaluator) loadPartitions() ([]dataset.Partition, error) {
	out := make([]dataset.Partition, 0, len(e.cfg.Data.Partitions))
	for _, pc := range e.cfg.Data.Partitions {
		part, err := dataset.LoadPartition(pc.Name, e.resolve(pc.Examples), e.resolve(pc.Helpers))
		if err != nil {
			return nil, err
		}
		e.log.Infof("%s data: %d", title(pc.Name), len(part.Examples))
		out = append(out, part)
	}
	return out, nil
}

// criterion falls back to the checkpoint's log-variances when the uncertainty policy has none configured.
func (e *Evaluator) criterion(tk task.Task, vocabs vocab.Set, ckpt *checkpoint.Checkpoint) (loss.Criterion, error) {
	logVars := e.cfg.Loss.LogVars
	if strings.EqualFold(e.cfg.Loss.Policy, loss.PolicyUncertainty) && len(logVars) == 0 {
		logVars = ckpt.LogVars
	}
	combiner, err := loss.NewCombiner(e.cfg.Loss.Policy, e.cfg.Loss.Weights, logVars)
	if err != nil {
		return nil, err
	}
	return loss.New(tk, vocabs, combiner)
}

// lossPass averages the batch losses weighted by batch size.
func (e *Evaluator) lossPass(ctx context.Context, m model.Model, vocabs vocab.Set, part dataset.Partition, criterion loss.Criterion) (float64, map[string]float64, error) {
	it, err := dataset.NewBucketIterator(part.Examples, vocabs, e.cfg.Run.BatchSize)
	if err != nil {
		return 0, nil, err
	}
	entities := target.NewEntityBuilder(part.Helpers, vocabs.EntityPointer)
	var total meter.RunningAverage
	perTask := map[task.Task]*meter.RunningAverage{}
	batches := it.Len()
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		batch, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, nil, err
		}
		_, timeLen := batch.PredicatePointer.Shape()
		entity, err := entities.Build(batch.IDs, timeLen)
		if err != nil {
			return 0, nil, err
		}
		out, err := m.Forward(batch.Input, batch.LogicalForm.DropLast(), batch.EntityPointer)
		if err != nil {
			return 0, nil, err
		}
		breakdown, err := criterion.Compute(out, loss.NewTargets(batch, entity))
		if err != nil {
			return 0, nil, err
		}
		weight := float64(batch.Size())
		total.Update(breakdown.Total, weight)
		for tk, value := range breakdown.PerTask {
			avg, ok := perTask[tk]
			if !ok {
				avg = &meter.RunningAverage{}
				perTask[tk] = avg
			}
			avg.Update(value, weight)
		}
		e.log.Debugf("%s batch %d/%d loss %.4f", part.Name, i+1, batches, breakdown.Total)
		e.observer.OnLossBatch(part.Name, i+1, batches, total.Average())
	}
	byName := make(map[string]float64, len(perTask))
	for tk, avg := range perTask {
		byName[tk.String()] = avg.Average()
	}
	return total.Average(), byName, nil
}

func (e *Evaluator) scorePass(ctx context.Context, m model.Model, vocabs vocab.Set, part dataset.Partition, tasks []task.Task) (*score.Scorer, error) {
	predictor, err := predict.New(m, vocabs, e.cfg.Run.MaxDecodeLength)
	if err != nil {
		return nil, err
	}
	scorer, err := score.New(vocabs, tasks)
	if err != nil {
		return nil, err
	}
	scorer.SetObserver(scoreObserver{partition: part.Name, observer: e.observer})
	e.observer.OnScoreStart(part.Name, len(part.Examples))
	if err := scorer.DataScore(ctx, part.Examples, part.Helpers, predictor); err != nil {
		return nil, err
	}
	return scorer, nil
}

func (e *Evaluator) logResults(partition string, table score.Table) {
	e.log.Infof("* %s Data Results:", title(partition))
	for _, category := range table.Categories() {
		e.log.Infof("\t%s:", category)
		for _, entry := range table.Entries {
			if entry.QuestionType == category {
				e.log.Infof("\t\t%s: %.4f", entry.Task, entry.Accuracy)
			}
		}
	}
	for _, entry := range table.Overall() {
		e.log.Infof("\t%s %s: %.4f", score.OverallCategory, entry.Task, entry.Accuracy)
	}
}

func (e *Evaluator) resolve(path string) string {
	return config.Resolve(e.root, path)
}

func title(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
