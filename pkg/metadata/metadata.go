// Package metadata maps raw Flickr photo objects onto store records.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"flico/pkg/models"
)

// Decode parses a raw API photo into the generic shape Extract accepts,
// keeping numbers as json.Number so integers are not reformatted.
func Decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode photo: %w", err)
	}
	return v, nil
}

// Extract builds a Record from one decoded photo object. It reports false
// when the input is not a JSON object.
func Extract(raw any) (models.Record, bool) {
	photo, ok := raw.(map[string]any)
	if !ok {
		return models.Record{}, false
	}

	return models.Record{
		ID:           stringify(photo["id"]),
		Secret:       stringify(photo["secret"]),
		Title:        content(photo["title"]),
		Description:  content(photo["description"]),
		DateTaken:    stringify(photo["datetaken"]),
		DateUploaded: stringify(photo["dateupload"]),
		Latitude:     stringify(photo["latitude"]),
		Longitude:    stringify(photo["longitude"]),
		Comments:     models.NotAvailable,
		Size:         dimension(photo, "o_width") + "x" + dimension(photo, "o_height"),
		ImageURL:     stringify(photo["url_o"]),
		Notes:        models.NotAvailable,
		Tags:         models.NotAvailable,
	}, true
}

// PhotoID returns the identifier of a decoded photo, or "".
func PhotoID(raw any) string {
	photo, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	return stringify(photo["id"])
}

// content unwraps Flickr's {"_content": "..."} text envelope.
func content(v any) string {
	nested, ok := v.(map[string]any)
	if !ok {
		return stringify(v)
	}
	if c, ok := nested["_content"]; ok {
		return stringify(c)
	}
	if c, ok := nested["content"]; ok {
		return stringify(c)
	}
	return stringify(nested)
}

func dimension(photo map[string]any, key string) string {
	v, ok := photo[key]
	if !ok || v == nil {
		return models.NotAvailable
	}
	return stringify(v)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
