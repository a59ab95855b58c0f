package model

import (
	"fmt"
	"time"
)

// Status is the processing status shown to the user.
type Status string

const (
	StatusWaiting      Status = "waiting"
	StatusAddSteps     Status = "add_steps"
	StatusProcessing   Status = "processing"
	StatusReady        Status = "ready"
	StatusDone         Status = "done"
	StatusError        Status = "error"
	StatusDisabled     Status = "disabled"
	StatusActionNeeded Status = "action_needed"
)

var statusTexts = map[Status]string{
	StatusWaiting:      "Waiting for image",
	StatusAddSteps:     "Add steps to start",
	StatusProcessing:   "Processing",
	StatusReady:        "Ready to process",
	StatusDone:         "Done",
	StatusError:        "Error",
	StatusDisabled:     "Live processing off",
	StatusActionNeeded: "Apply pipeline or enable live",
}

// Text returns the label displayed next to the status indicator.
func (s Status) Text() string {
	if text, ok := statusTexts[s]; ok {
		return text
	}

	return string(s)
}

// View is a read-only snapshot of a pipeline handed to renderers.
type View struct {
	Steps           []Step
	PreviewSteps    []int
	PreviewsVisible bool
	Previews        map[int]Artifact
	Processed       Artifact
	ImageName       string
	HasImage        bool
	LiveProcessing  bool
	Processing      bool
	Status          Status
	ProcessingTime  time.Duration
}

// IsPreviewed reports whether the step at index is flagged for an intermediate preview.
func (v View) IsPreviewed(index int) bool {
	for _, idx := range v.PreviewSteps {
		if idx == index {
			return true
		}
	}

	return false
}

// StepsLabel returns the step counter, e.g. "1 step" or "3 steps".
func (v View) StepsLabel() string {
	if len(v.Steps) == 1 {
		return "1 step"
	}

	return fmt.Sprintf("%d steps", len(v.Steps))
}
