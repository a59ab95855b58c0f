package model

import "time"

// ProcessRequest is one submission to the processing endpoint.
type ProcessRequest struct {
	// ID identifies the request in logs and in the X-Request-ID header.
	ID           string
	Image        Image
	Steps        []Step
	PreviewSteps []int
}

// ProcessResult is the response of the processing endpoint.
type ProcessResult struct {
	Success             bool             `json:"success"`
	Image               Artifact         `json:"image,omitempty"`
	IntermediateResults map[int]Artifact `json:"intermediate_results,omitempty"`
	// ProcessingTime is the server-side processing time in milliseconds.
	ProcessingTime float64 `json:"processing_time,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func (r *ProcessResult) ProcessingDuration() time.Duration {
	return time.Duration(r.ProcessingTime * float64(time.Millisecond))
}
