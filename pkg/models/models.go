package models

import (
	"strings"
	"unicode"
)

// NotAvailable is written to columns the Flickr API does not populate for us.
const NotAvailable = "N/A"

// Columns is the fixed header of every institution store, in order.
var Columns = []string{
	"id",
	"secret",
	"title",
	"description",
	"date_taken",
	"date_uploaded",
	"latitude",
	"longitude",
	"comments",
	"size",
	"image_url",
	"notes",
	"tags",
}

// Institution is a Flickr Commons member.
type Institution struct {
	ID   string `json:"nsid"`
	Name string `json:"name"`
}

// Filename returns the store filename for the institution, or "" when the
// name sanitizes to nothing.
func (i Institution) Filename() string {
	base := SanitizeName(i.Name)
	if base == "" {
		return ""
	}
	return base + ".csv"
}

// SanitizeName keeps letters, digits, spaces, '-' and '_' and trims the result.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Record is one metadata row.
type Record struct {
	ID           string `csv:"id"`
	Secret       string `csv:"secret"`
	Title        string `csv:"title"`
	Description  string `csv:"description"`
	DateTaken    string `csv:"date_taken"`
	DateUploaded string `csv:"date_uploaded"`
	Latitude     string `csv:"latitude"`
	Longitude    string `csv:"longitude"`
	Comments     string `csv:"comments"`
	Size         string `csv:"size"`
	ImageURL     string `csv:"image_url"`
	Notes        string `csv:"notes"`
	Tags         string `csv:"tags"`
}

// Row returns the record's values in Columns order.
func (r Record) Row() []string {
	return []string{
		r.ID,
		r.Secret,
		r.Title,
		r.Description,
		r.DateTaken,
		r.DateUploaded,
		r.Latitude,
		r.Longitude,
		r.Comments,
		r.Size,
		r.ImageURL,
		r.Notes,
		r.Tags,
	}
}
