package models

import (
	"math"
	"time"
)

// Status is the outcome of one (school, policy) pair.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusError   Status = "Error"
	StatusSkipped Status = "Skipped"
)

// ProcessingResult records the outcome of rendering one policy template for one school.
// It is also the shape written to every processing log.
type ProcessingResult struct {
	RunID           string    `json:"runId" firestore:"runId"`
	RunDate         time.Time `json:"runDate" firestore:"runDate"`
	SchoolCode      string    `json:"schoolCode" firestore:"schoolCode"`
	PolicyName      string    `json:"policyName" firestore:"policyName"`
	Status          Status    `json:"status" firestore:"status"`
	ErrorMessage    string    `json:"errorMessage,omitempty" firestore:"errorMessage,omitempty"`
	DurationSeconds float64   `json:"durationSeconds" firestore:"durationSeconds"`
}

// Failed returns a copy of r marked as an error with the given message.
func (r ProcessingResult) Failed(message string) ProcessingResult {
	r.Status = StatusError
	r.ErrorMessage = message
	return r
}

// RoundSeconds converts d to seconds rounded to two decimal places.
func RoundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// Summary counts results by status.
type Summary struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped,omitempty"`
}

// Summarize tallies a batch of results.
func Summarize(results []ProcessingResult) Summary {
	s := Summary{Processed: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Success++
		case StatusError:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Template is a policy template available in the templates library.
type Template struct {
	// Name is the filename without extension; it names the output document.
	Name     string
	FileName string
	ItemID   string
}
