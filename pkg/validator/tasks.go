package validator

import (
	"fmt"
	"unicode/utf8"

	"jiraharvest/pkg/models"
)

// summaryThreshold is how much longer than the title the full text must be
// before a summarization task is worth emitting
const summaryThreshold = 50

// generator builds one task or reports that it does not apply
type generator func(rec *models.NormalizedRecord) (models.DerivedTask, bool)

var generators = []generator{
	summarizeTask,
	priorityTask,
	issueTypeTask,
	statusTask,
}

// DeriveTasks builds the instruction-tuning examples for a record. The
// result depends only on the record's fields.
func DeriveTasks(rec *models.NormalizedRecord) []models.DerivedTask {
	tasks := make([]models.DerivedTask, 0, len(generators))
	for _, g := range generators {
		if task, ok := g(rec); ok {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func shortInput(rec *models.NormalizedRecord) string {
	return fmt.Sprintf("Title: %s\nDescription: %s", rec.Title, deref(rec.DescriptionText))
}

func summarizeTask(rec *models.NormalizedRecord) (models.DerivedTask, bool) {
	full := fmt.Sprintf("Title: %s\nDescription: %s\nComments: %s",
		rec.Title, deref(rec.DescriptionText), deref(rec.CommentsText))
	if utf8.RuneCountInString(full) <= utf8.RuneCountInString(rec.Title)+summaryThreshold {
		return models.DerivedTask{}, false
	}
	return models.DerivedTask{
		Instruction: "Summarize the following issue report.",
		Input:       full,
		Output:      rec.Title,
	}, true
}

func priorityTask(rec *models.NormalizedRecord) (models.DerivedTask, bool) {
	if rec.Priority == "" {
		return models.DerivedTask{}, false
	}
	return models.DerivedTask{
		Instruction: fmt.Sprintf("What is the priority of issue %s?", rec.IssueKey),
		Input:       shortInput(rec),
		Output:      rec.Priority,
	}, true
}

func issueTypeTask(rec *models.NormalizedRecord) (models.DerivedTask, bool) {
	if rec.IssueType == "" {
		return models.DerivedTask{}, false
	}
	return models.DerivedTask{
		Instruction: fmt.Sprintf("What is the issue type for %s?", rec.IssueKey),
		Input:       shortInput(rec),
		Output:      rec.IssueType,
	}, true
}

func statusTask(rec *models.NormalizedRecord) (models.DerivedTask, bool) {
	if rec.Status == "" {
		return models.DerivedTask{}, false
	}
	return models.DerivedTask{
		Instruction: "Classify the current status of this issue.",
		Input:       shortInput(rec),
		Output:      rec.Status,
	}, true
}
