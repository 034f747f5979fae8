package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flico/pkg/models"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	v, err := Decode(json.RawMessage(s))
	require.NoError(t, err)
	return v
}

func TestExtractNormalizesFields(t *testing.T) {
	raw := decode(t, `{
		"id": "5",
		"secret": "abc",
		"title": {"_content": "Hi"},
		"description": {"_content": "A photo"},
		"datetaken": "1920-01-01 00:00:00",
		"dateupload": "1199145600",
		"latitude": 0,
		"longitude": "-71.5",
		"o_width": 800,
		"url_o": "https://live.staticflickr.com/5_abc_o.jpg"
	}`)

	rec, ok := Extract(raw)
	require.True(t, ok)

	assert.Equal(t, "5", rec.ID)
	assert.Equal(t, "abc", rec.Secret)
	assert.Equal(t, "Hi", rec.Title)
	assert.Equal(t, "A photo", rec.Description)
	assert.Equal(t, "1920-01-01 00:00:00", rec.DateTaken)
	assert.Equal(t, "1199145600", rec.DateUploaded)
	assert.Equal(t, "0", rec.Latitude)
	assert.Equal(t, "-71.5", rec.Longitude)
	assert.Equal(t, "800xN/A", rec.Size)
	assert.Equal(t, "https://live.staticflickr.com/5_abc_o.jpg", rec.ImageURL)
	assert.Equal(t, models.NotAvailable, rec.Comments)
	assert.Equal(t, models.NotAvailable, rec.Notes)
	assert.Equal(t, models.NotAvailable, rec.Tags)
}

func TestExtractMissingFieldsBecomeEmpty(t *testing.T) {
	rec, ok := Extract(decode(t, `{"id": "9", "title": null}`))
	require.True(t, ok)

	assert.Equal(t, "9", rec.ID)
	assert.Empty(t, rec.Secret)
	assert.Empty(t, rec.Title)
	assert.Empty(t, rec.Description)
	assert.Empty(t, rec.ImageURL)
	assert.Equal(t, "N/AxN/A", rec.Size)
}

func TestExtractTextVariants(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"scalar title", `{"title": "Plain"}`, "Plain"},
		{"content key", `{"title": {"content": "Alt"}}`, "Alt"},
		{"unknown envelope", `{"title": {"lang": "en"}}`, `{"lang":"en"}`},
		{"numeric title", `{"title": 1901}`, "1901"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Extract(decode(t, tt.input))
			require.True(t, ok)
			assert.Equal(t, tt.expected, rec.Title)
		})
	}
}

func TestExtractUnknownEnvelopeKeepsJSON(t *testing.T) {
	rec, ok := Extract(decode(t, `{
		"id": "7",
		"title": {"foo": "bar"},
		"description": {"lang": "en", "text": "Harbour, 1910", "n": 3}
	}`))
	require.True(t, ok)

	assert.Equal(t, `{"foo":"bar"}`, rec.Title)
	assert.Equal(t, `{"lang":"en","n":3,"text":"Harbour, 1910"}`, rec.Description)
}

func TestExtractRejectsNonObjects(t *testing.T) {
	for _, input := range []string{`"5"`, `[1,2]`, `null`, `42`} {
		_, ok := Extract(decode(t, input))
		assert.False(t, ok, input)
	}
}

func TestExtractIsPure(t *testing.T) {
	raw := decode(t, `{"id": "1", "title": {"_content": "x"}}`)
	first, _ := Extract(raw)
	second, _ := Extract(raw)
	assert.Equal(t, first, second)
}

func TestPhotoID(t *testing.T) {
	assert.Equal(t, "42", PhotoID(decode(t, `{"id": 42}`)))
	assert.Equal(t, "", PhotoID(decode(t, `{"secret": "x"}`)))
	assert.Equal(t, "", PhotoID(decode(t, `[]`)))
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode(json.RawMessage(`{bad`))
	assert.Error(t, err)
}
