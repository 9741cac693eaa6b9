package dataset

import (
	"fmt"
	"strings"
)

// Issue captures a validation problem in an examples file.
type Issue struct {
	Field   string
	Message string
}

// ValidationError reports one or more example validation issues.
type ValidationError struct {
	Issues []Issue
}

// Error returns a readable message for validation failures.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return fmt.Sprintf("examples validation failed: %s", strings.Join(parts, "; "))
}

type issueCollector struct {
	issues []Issue
}

func (collector *issueCollector) add(field, message string) {
	collector.issues = append(collector.issues, Issue{Field: field, Message: message})
}

func (collector *issueCollector) result() error {
	if len(collector.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: collector.issues}
}

// ValidateExamples checks ids, categories and inputs. Gold streams are optional here;
// the scorer reports missing gold for the tasks it actually scores.
func ValidateExamples(examples []Example) error {
	collector := &issueCollector{}
	if len(examples) == 0 {
		collector.add("examples", "must include at least one entry")
	}
	seen := map[string]struct{}{}
	for i, example := range examples {
		prefix := fmt.Sprintf("examples[%d]", i)
		if strings.TrimSpace(example.ID) == "" {
			collector.add(prefix+".id", "is required")
		} else if _, exists := seen[example.ID]; exists {
			collector.add(prefix+".id", fmt.Sprintf("duplicate id %q", example.ID))
		} else {
			seen[example.ID] = struct{}{}
		}
		if strings.TrimSpace(example.QuestionType) == "" {
			collector.add(prefix+".question_type", "is required")
		}
		if len(example.Input) == 0 {
			collector.add(prefix+".input", "must include at least one token")
		}
	}
	return collector.result()
}
