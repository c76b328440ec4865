package services

import "errors"

var (
	// ErrAlreadyProcessed is returned by MarkProcessed when the key was already recorded.
	ErrAlreadyProcessed = errors.New("event already processed")
	// ErrRunInProgress is returned when another dunning run holds the run lock.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrInvalidInvoiceID is returned for an empty invoice id.
	ErrInvalidInvoiceID = errors.New("invalid invoice id")
	// ErrInvoiceNotFound is returned when a bookkeeping update matched no invoice.
	ErrInvoiceNotFound = errors.New("invoice not found")
)
