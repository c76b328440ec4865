package dunning

import (
	"fmt"
	"time"

	"greendrake/dunning/internal/models"
)

// FailureKind classifies why a candidate could not be reminded.
type FailureKind string

const (
	FailureRetryable   FailureKind = "retryable"   // Transient provider or store error
	FailurePermanent   FailureKind = "permanent"   // Provider rejected the message or channel misconfigured
	FailureUnreachable FailureKind = "unreachable" // No usable phone or email
)

// Failure is the structured form of one entry in RunResult.Errors.
type Failure struct {
	InvoiceID     string         `json:"invoice_id"`
	InvoiceNumber string         `json:"invoice_number"`
	Channel       models.Channel `json:"channel"`
	Kind          FailureKind    `json:"kind"`
	Detail        string         `json:"detail"`
}

// RunResult summarizes one dunning run. Errors keeps the flat
// "{invoiceNumber}: {message}" strings; Failures carries the same entries with
// invoice, channel and kind attached.
type RunResult struct {
	RunID      string    `json:"run_id"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	Sent       int       `json:"sent"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors"`
	Failures   []Failure `json:"failures"`
}

func newRunResult(runID string, dryRun bool, startedAt time.Time) RunResult {
	return RunResult{
		RunID:     runID,
		DryRun:    dryRun,
		StartedAt: startedAt,
		Errors:    []string{},
		Failures:  []Failure{},
	}
}

func (r *RunResult) addFailure(f Failure) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", f.InvoiceNumber, f.Detail))
	r.Failures = append(r.Failures, f)
}
