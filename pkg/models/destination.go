package models

import (
	"fmt"
	"net/url"
	"path"
	"time"
)

// DestinationType is the warehouse or store a destination points at.
type DestinationType string

const (
	DestinationTypeBigQuery  DestinationType = "bigquery"
	DestinationTypeSnowflake DestinationType = "snowflake"
	DestinationTypeS3        DestinationType = "s3"
)

// ValidDestinationTypes contains all valid destination type values.
var ValidDestinationTypes = []DestinationType{
	DestinationTypeBigQuery,
	DestinationTypeSnowflake,
	DestinationTypeS3,
}

// IsValidDestinationType checks if the given type is valid.
func IsValidDestinationType(t DestinationType) bool {
	for _, v := range ValidDestinationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Destination is a configured data target (BigQuery, Snowflake or S3).
type Destination struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	Type            DestinationType `json:"type"`
	ProjectID       string          `json:"projectId,omitempty"`
	URL             string          `json:"url,omitempty"`
	DatasetID       string          `json:"datasetId,omitempty"`       // BigQuery only
	TargetTableName string          `json:"targetTableName,omitempty"` // BigQuery only
	Image           string          `json:"image,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	UserID          int             `json:"userId"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CreateDestination is the payload for creating or updating a destination.
// Serialized as multipart form data, like CreateSource.
type CreateDestination struct {
	Name            string
	Type            DestinationType
	ProjectID       string
	URL             string
	DatasetID       string
	TargetTableName string
	Metadata        map[string]any
	Image           *FileUpload
}

// Validate performs the client-side presence checks. BigQuery destinations
// need a dataset and target table before the backend will accept a load.
func (p *CreateDestination) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("destination name is required")
	}
	if p.Type == "" {
		return fmt.Errorf("destination type is required")
	}
	if !IsValidDestinationType(p.Type) {
		return fmt.Errorf("invalid destination type %q", p.Type)
	}
	if p.Type == DestinationTypeBigQuery {
		if p.DatasetID == "" {
			return fmt.Errorf("datasetId is required for bigquery destinations")
		}
		if p.TargetTableName == "" {
			return fmt.Errorf("targetTableName is required for bigquery destinations")
		}
	}
	return nil
}

// AssetURL resolves a stored file or image name against the backend's
// uploads path. Returns empty string for empty filenames.
func AssetURL(backendURL, filename string) string {
	if filename == "" {
		return ""
	}
	u, err := url.Parse(backendURL)
	if err != nil {
		return ""
	}
	u.Path = path.Join(u.Path, "uploads", filename)
	return u.String()
}
