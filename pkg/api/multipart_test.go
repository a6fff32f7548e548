package api

import (
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatram-io/datatram-go/pkg/models"
)

func parseForm(t *testing.T, contentType string, body io.Reader) map[string][]string {
	t.Helper()

	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	reader := multipart.NewReader(body, params["boundary"])

	fields := make(map[string][]string)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		value, err := io.ReadAll(part)
		require.NoError(t, err)
		key := part.FormName()
		if part.FileName() != "" {
			key = key + ":" + part.FileName()
		}
		fields[key] = append(fields[key], string(value))
	}
	return fields
}

func TestForm_TextAndJSONFields(t *testing.T) {
	form := NewForm().
		Field("name", "orders").
		Field("host", ""). // skipped
		Field("type", "csv").
		JSONField("metadata", map[string]any{"rows": 10})

	contentType, body, err := form.Encode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data"))

	fields := parseForm(t, contentType, body)
	assert.Equal(t, []string{"orders"}, fields["name"])
	assert.Equal(t, []string{"csv"}, fields["type"])
	assert.JSONEq(t, `{"rows":10}`, fields["metadata"][0])
	_, hasHost := fields["host"]
	assert.False(t, hasHost, "empty optional fields are not appended")
}

func TestForm_FileParts(t *testing.T) {
	form := NewForm().
		Field("name", "orders").
		File("file", &models.FileUpload{Filename: "orders.csv", Content: strings.NewReader("a,b\n1,2\n")}).
		File("image", nil) // skipped

	contentType, body, err := form.Encode()
	require.NoError(t, err)

	fields := parseForm(t, contentType, body)
	assert.Equal(t, []string{"a,b\n1,2\n"}, fields["file:orders.csv"])
	for key := range fields {
		assert.False(t, strings.HasPrefix(key, "image"), "nil upload must be skipped")
	}
}

func TestForm_EmptyMetadataSkipped(t *testing.T) {
	contentType, body, err := NewForm().Field("name", "x").JSONField("metadata", nil).Encode()
	require.NoError(t, err)

	fields := parseForm(t, contentType, body)
	_, has := fields["metadata"]
	assert.False(t, has)
}
