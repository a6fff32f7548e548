// Package models defines the entities transferred over the Datatram wire
// protocol. The backend owns persistence; these are client-side reflections
// of the last successful fetch.
package models

import (
	"fmt"
	"io"
	"time"
)

// SourceType is the kind of data a source holds.
type SourceType string

const (
	SourceTypePDF   SourceType = "pdf"
	SourceTypeCSV   SourceType = "csv"
	SourceTypeExcel SourceType = "excel"
	SourceTypeJSON  SourceType = "json"
	SourceTypeXML   SourceType = "xml"
)

// ValidSourceTypes contains all valid source type values.
var ValidSourceTypes = []SourceType{
	SourceTypePDF,
	SourceTypeCSV,
	SourceTypeExcel,
	SourceTypeJSON,
	SourceTypeXML,
}

// IsValidSourceType checks if the given type is valid.
func IsValidSourceType(t SourceType) bool {
	for _, v := range ValidSourceTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Source is a registered data source: an uploaded file or a database
// connector endpoint.
type Source struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	Host      string         `json:"host,omitempty"`
	Type      SourceType     `json:"type,omitempty"`
	Image     string         `json:"image,omitempty"` // stored filename, served from /uploads
	File      string         `json:"file,omitempty"`  // stored filename, served from /uploads
	Metadata  map[string]any `json:"metadata,omitempty"`
	UserID    int            `json:"userId"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// FileUpload is a binary form part for create/update requests.
type FileUpload struct {
	Filename string
	Content  io.Reader
}

// CreateSource is the payload for creating or updating a source. It is
// serialized as multipart form data: text fields appended directly, Metadata
// JSON-stringified, File and Image appended as file parts.
type CreateSource struct {
	Name     string
	Host     string
	Type     SourceType
	Metadata map[string]any
	File     *FileUpload
	Image    *FileUpload
}

// Validate performs the client-side presence checks. Full validation is
// server-side.
func (p *CreateSource) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if p.Type != "" && !IsValidSourceType(p.Type) {
		return fmt.Errorf("invalid source type %q", p.Type)
	}
	return nil
}
