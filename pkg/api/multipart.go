package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/datatram-io/datatram-go/pkg/models"
)

// Form builds a multipart/form-data request body the way the backend
// expects: text fields appended directly, JSON-valued fields stringified,
// binary uploads appended as file parts. Errors are sticky and reported by
// Encode.
type Form struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

// NewForm returns an empty multipart form.
func NewForm() *Form {
	f := &Form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

// Field appends a text field. Empty values are skipped, matching the
// optional-field handling of the dashboard forms.
func (f *Form) Field(name, value string) *Form {
	if f.err != nil || value == "" {
		return f
	}
	f.err = f.w.WriteField(name, value)
	return f
}

// JSONField appends a JSON-valued field as its stringified encoding. Nil and
// empty maps are skipped.
func (f *Form) JSONField(name string, value map[string]any) *Form {
	if f.err != nil || len(value) == 0 {
		return f
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		f.err = fmt.Errorf("encode %s: %w", name, err)
		return f
	}
	f.err = f.w.WriteField(name, string(encoded))
	return f
}

// File appends a binary upload as a file part. Nil uploads are skipped.
func (f *Form) File(name string, upload *models.FileUpload) *Form {
	if f.err != nil || upload == nil {
		return f
	}

	part, err := f.w.CreateFormFile(name, upload.Filename)
	if err != nil {
		f.err = err
		return f
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		f.err = fmt.Errorf("copy %s: %w", name, err)
	}
	return f
}

// Encode finalizes the form and returns its content type (with boundary) and
// body.
func (f *Form) Encode() (string, io.Reader, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	if err := f.w.Close(); err != nil {
		return "", nil, err
	}
	return f.w.FormDataContentType(), &f.buf, nil
}
