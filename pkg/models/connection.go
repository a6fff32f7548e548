package models

import "fmt"

// Connection links a source to a destination. The name and image fields are
// denormalized by the backend for display.
type Connection struct {
	ID              int    `json:"id"`
	SourceID        int    `json:"sourceId"`
	DestinationID   int    `json:"destinationId"`
	SourceName      string `json:"sourceName,omitempty"`
	DestinationName string `json:"destinationName,omitempty"`
	SourceImage     string `json:"sourceImage,omitempty"`
}

// CreateConnection is the JSON payload for creating a connection. Both
// referenced entities must exist and be owned by the caller; the backend
// enforces that, the client only checks the selection is complete.
type CreateConnection struct {
	SourceID      int `json:"sourceId"`
	DestinationID int `json:"destinationId"`
}

func (p *CreateConnection) Validate() error {
	if p.SourceID <= 0 {
		return fmt.Errorf("sourceId is required")
	}
	if p.DestinationID <= 0 {
		return fmt.Errorf("destinationId is required")
	}
	return nil
}

// UpdateConnection is the JSON payload for partially updating a connection.
// Nil fields are left unchanged.
type UpdateConnection struct {
	SourceID      *int `json:"sourceId,omitempty"`
	DestinationID *int `json:"destinationId,omitempty"`
}

func (p *UpdateConnection) Validate() error {
	if p.SourceID == nil && p.DestinationID == nil {
		return fmt.Errorf("nothing to update")
	}
	if p.SourceID != nil && *p.SourceID <= 0 {
		return fmt.Errorf("sourceId must be positive")
	}
	if p.DestinationID != nil && *p.DestinationID <= 0 {
		return fmt.Errorf("destinationId must be positive")
	}
	return nil
}
