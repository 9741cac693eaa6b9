package cucumber

import (
	"fmt"
	"os"

	"lfeval/internal/checkpoint"
	"lfeval/internal/dataset"
	"lfeval/internal/evaluator"
	"lfeval/internal/model"
	"lfeval/internal/testutil"
)

// aProjectWithTrainedCheckpoint writes a project whose checkpoint holds seq2seq weights
// and makes it the working directory.
func (s *featureState) aProjectWithTrainedCheckpoint(epoch int) error {
	s.project = testutil.WriteProject(s.t,
		testutil.PartitionFixture{Name: "val", Examples: []dataset.Example{
			testutil.Example("v1", "Clarification"),
			testutil.Example("v2", "Clarification"),
		}, Loss: true},
		testutil.PartitionFixture{Name: "test", Examples: []dataset.Example{
			testutil.Example("t1", "Clarification"),
			testutil.Example("t2", "Simple Question (Direct)"),
			testutil.Example("t3", "Simple Question (Direct)"),
		}, Loss: true, Score: true},
	)
	s.project.Config.Output.LogFile = "eval.log"

	m, err := evaluator.NewSeq2Seq(testutil.Vocabs(s.t), s.project.Config.Model, s.project.Config.Run.RandomSeed())
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}
	seq, ok := m.(*model.Seq2Seq)
	if !ok {
		return fmt.Errorf("unexpected model type %T", m)
	}
	ckpt := checkpoint.FromParameters(epoch, seq.Parameters())
	if err := checkpoint.Save(s.resolve(s.project.Config.Model.Checkpoint), ckpt); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	s.configPath = s.project.WriteConfig(s.t)

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working dir: %w", err)
	}
	s.previousWD = wd
	if err := os.Chdir(s.project.Root); err != nil {
		return fmt.Errorf("chdir: %w", err)
	}
	return nil
}

// theConfigSetsBatchSize rewrites the config with a different batch size.
func (s *featureState) theConfigSetsBatchSize(size int) error {
	if s.configPath == "" {
		return fmt.Errorf("no project has been written")
	}
	s.project.Config.Run.BatchSize = size
	s.configPath = s.project.WriteConfig(s.t)
	return nil
}
