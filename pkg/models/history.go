package models

import (
	"encoding/json"
	"time"

	"github.com/datatram-io/datatram-go/pkg/jsonutil"
)

// History entry statuses as the backend currently writes them. Status is a
// free-form string on the wire; these are the values observed in practice.
const (
	HistoryStatusSuccess = "success"
	HistoryStatusFailure = "failure"
	HistoryStatusPending = "pending"
)

// ConnectionHistory is a read-only record of a past load-job attempt,
// created by the backend as a side effect of a job trigger.
type ConnectionHistory struct {
	ID              int                        `json:"id"`
	ConnectionID    *int                       `json:"connectionId"`
	SourceID        *int                       `json:"sourceId"`
	DestinationID   *int                       `json:"destinationId"`
	AttemptedAt     time.Time                  `json:"attemptedAt"`
	Status          string                     `json:"status"`
	Metadata        map[string]json.RawMessage `json:"metadata"`
	SourceName      string                     `json:"sourceName,omitempty"`
	DestinationName string                     `json:"destinationName,omitempty"`
}

// UserID returns the owning user id recorded in metadata, tolerating both
// string and numeric encodings. Empty when metadata is absent.
func (h *ConnectionHistory) UserID() string {
	if h.Metadata == nil {
		return ""
	}
	return jsonutil.FlexibleString(h.Metadata["userId"])
}

// RowsProcessed returns the row count recorded in metadata, if any.
func (h *ConnectionHistory) RowsProcessed() (int64, bool) {
	if h.Metadata == nil {
		return 0, false
	}
	return jsonutil.FlexibleInt(h.Metadata["rowsProcessed"])
}

// Duration returns the load duration in milliseconds recorded in metadata,
// if any.
func (h *ConnectionHistory) Duration() (int64, bool) {
	if h.Metadata == nil {
		return 0, false
	}
	return jsonutil.FlexibleInt(h.Metadata["duration"])
}

// FileName returns the loaded file name recorded in metadata, if any.
func (h *ConnectionHistory) FileName() string {
	if h.Metadata == nil {
		return ""
	}
	return jsonutil.FlexibleString(h.Metadata["fileName"])
}

// ErrorMessage returns the failure detail recorded in metadata, if any.
func (h *ConnectionHistory) ErrorMessage() string {
	if h.Metadata == nil {
		return ""
	}
	return jsonutil.FlexibleString(h.Metadata["error"])
}

// LoadJobRequest triggers a one-shot load of a connection's source data into
// its BigQuery destination.
type LoadJobRequest struct {
	ConnectionID  int `json:"connectionId"`
	DestinationID int `json:"destinationId"`
}

// LoadJobResult is the backend's response to a load-job trigger.
type LoadJobResult struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	Data          json.RawMessage `json:"data"`
	RowsProcessed int64           `json:"rowsProcessed"`
}
