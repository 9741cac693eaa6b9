package config

import (
	"fmt"
	"strings"
)

// Issue is one problem with a config field. Field uses the YAML path, e.g. "data.partitions[1].examples".
type Issue struct {
	Field   string
	Message string
}

// ValidationError lists every problem found in a config, in the order the sections are checked.
type ValidationError struct {
	Issues []Issue
}

func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return "invalid config"
	}
	lines := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		lines = append(lines, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return strings.Join(lines, "\n")
}

// Has reports whether any issue concerns field or one of its children.
func (err *ValidationError) Has(field string) bool {
	if err == nil {
		return false
	}
	for _, issue := range err.Issues {
		if issue.Field == field || strings.HasPrefix(issue.Field, field+".") || strings.HasPrefix(issue.Field, field+"[") {
			return true
		}
	}
	return false
}

type issueAdder func(field, message string)

type issueCollector struct {
	issues []Issue
}

func (c *issueCollector) add(field, message string) {
	c.issues = append(c.issues, Issue{Field: field, Message: message})
}

func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}
