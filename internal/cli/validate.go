package cli

import (
	"fmt"
	"io"

	"lfeval/internal/checkpoint"
	"lfeval/internal/config"
	"lfeval/internal/dataset"
	"lfeval/internal/evaluator"
	"lfeval/internal/spec"
	"lfeval/internal/vocab"
)

// runValidate builds the handler for the validate command.
func runValidate(cmd *Command) handler {
	return func(args []string, stdout, stderr io.Writer) int {
		flags := cmd.flagSet(stderr)
		specPath := flags.String("spec", "", "Path to config file (default: search for .lfeval/config.yml)")
		checkData := flags.Bool("data", false, "Also load the vocabulary, partitions and checkpoint")
		if code, ok := cmd.parse(flags, args, stdout, stderr); !ok {
			return code
		}

		cfg, root, err := loadProject(*specPath)
		if err != nil {
			fmt.Fprintf(stderr, "Validation failed:\n%s\n", err.Error())
			return ExitError
		}
		if *checkData {
			if err := validateData(cfg, root, stdout); err != nil {
				fmt.Fprintf(stderr, "Validation failed:\n%s\n", err.Error())
				return ExitError
			}
		}

		fmt.Fprintln(stdout, "Config OK")
		return ExitOK
	}
}

// validateData loads everything a run needs without evaluating.
func validateData(cfg spec.Config, root string, stdout io.Writer) error {
	vocabs, err := vocab.Load(config.Resolve(root, cfg.Data.Vocab))
	if err != nil {
		return err
	}
	for _, pc := range cfg.Data.Partitions {
		part, err := dataset.LoadPartition(pc.Name, config.Resolve(root, pc.Examples), config.Resolve(root, pc.Helpers))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Partition %s: %d examples, %d helper records\n", part.Name, len(part.Examples), part.Helpers.Len())
	}
	factory := newModel
	if factory == nil {
		factory = evaluator.NewSeq2Seq
	}
	m, err := factory(vocabs, cfg.Model, cfg.Run.RandomSeed())
	if err != nil {
		return err
	}
	ckpt, err := checkpoint.Load(config.Resolve(root, cfg.Model.Checkpoint))
	if err != nil {
		return err
	}
	if err := ckpt.Apply(m); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Checkpoint: epoch %d\n", ckpt.Epoch)
	return nil
}
