package live

import (
	"fmt"
	"sort"

	"lfeval/internal/task"
)

// Reduce applies an event to the UI state.
func Reduce(state State, event Event) State {
	switch event.Kind {
	case EventRunStart:
		state.RunID = event.RunID
		state.Partitions = make([]PartitionStatus, 0, len(event.Partitions))
		for _, name := range event.Partitions {
			state.Partitions = append(state.Partitions, PartitionStatus{Name: name})
		}
		state.LastEvent = "run started"
	case EventLossBatch:
		state.Phase = PhaseLoss
		state.Partition = event.Partition
		state.Batch = event.Batch
		state.Batches = event.Batches
		state.Running = event.Loss
	case EventLossDone:
		state = updatePartition(state, event.Partition, func(p *PartitionStatus) {
			p.Loss = event.Loss
			p.HasLoss = true
		})
		state.LastEvent = fmt.Sprintf("%s loss %.4f", event.Partition, event.Loss)
	case EventScoreStart:
		state.Phase = PhaseScore
		state.Partition = event.Partition
		state.Rows = nil
		state.Tasks = nil
		state = updatePartition(state, event.Partition, func(p *PartitionStatus) {
			p.Total = event.Examples
			p.Scored = 0
		})
		state.LastEvent = fmt.Sprintf("scoring %s (%d examples)", event.Partition, event.Examples)
	case EventExample:
		state = applyExample(state, event)
	case EventRunEnd:
		state.Phase = PhaseDone
		state.Err = event.Err
		if event.Err != nil {
			state.LastEvent = "run failed: " + event.Err.Error()
		} else {
			state.LastEvent = "run finished"
		}
	}
	return state
}

// applyExample folds one scored example into its category row.
func applyExample(state State, event Event) State {
	p := event.Progress
	state = updatePartition(state, event.Partition, func(ps *PartitionStatus) {
		ps.Scored = p.Index + 1
		if p.Total > 0 {
			ps.Total = p.Total
		}
	})
	state.Tasks = mergeTasks(state.Tasks, p.Correct)

	idx := -1
	for i, row := range state.Rows {
		if row.QuestionType == p.QuestionType {
			idx = i
			break
		}
	}
	if idx < 0 {
		grown := make([]CategoryRow, len(state.Rows), len(state.Rows)+1)
		copy(grown, state.Rows)
		state.Rows = append(grown, CategoryRow{QuestionType: p.QuestionType, Tasks: map[task.Task]Tally{}})
		sort.SliceStable(state.Rows, func(i, j int) bool { return state.Rows[i].QuestionType < state.Rows[j].QuestionType })
		for i, row := range state.Rows {
			if row.QuestionType == p.QuestionType {
				idx = i
			}
		}
	}
	row := state.Rows[idx]
	tasks := make(map[task.Task]Tally, len(row.Tasks)+len(p.Correct))
	for tk, tally := range row.Tasks {
		tasks[tk] = tally
	}
	for tk, correct := range p.Correct {
		tally := tasks[tk]
		tally.Total++
		if correct {
			tally.Correct++
		}
		tasks[tk] = tally
	}
	row.Tasks = tasks
	row.Examples++
	rows := make([]CategoryRow, len(state.Rows))
	copy(rows, state.Rows)
	rows[idx] = row
	state.Rows = rows
	state.LastEvent = formatExample(event)
	return state
}

func updatePartition(state State, name string, fn func(*PartitionStatus)) State {
	partitions := make([]PartitionStatus, len(state.Partitions))
	copy(partitions, state.Partitions)
	for i := range partitions {
		if partitions[i].Name == name {
			fn(&partitions[i])
			state.Partitions = partitions
			return state
		}
	}
	status := PartitionStatus{Name: name}
	fn(&status)
	state.Partitions = append(partitions, status)
	return state
}

func mergeTasks(tasks []task.Task, correct map[task.Task]bool) []task.Task {
	if len(correct) == 0 {
		return tasks
	}
	seen := make(map[task.Task]bool, len(tasks))
	out := append([]task.Task(nil), tasks...)
	for _, tk := range tasks {
		seen[tk] = true
	}
	for tk := range correct {
		if !seen[tk] {
			out = append(out, tk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return task.Order(out[i]) < task.Order(out[j]) })
	return out
}

// formatExample creates a short footer message for a scored example.
func formatExample(event Event) string {
	p := event.Progress
	wrong := 0
	for _, correct := range p.Correct {
		if !correct {
			wrong++
		}
	}
	if wrong == 0 {
		return fmt.Sprintf("%s #%d %s: all streams match", event.Partition, p.Index+1, p.ExampleID)
	}
	return fmt.Sprintf("%s #%d %s: %d stream(s) differ", event.Partition, p.Index+1, p.ExampleID, wrong)
}
