package flickr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"flico/pkg/models"
)

// envelope is the status part every REST response carries.
type envelope struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FlexInt accepts integers encoded either as JSON numbers or strings,
// which the API mixes freely.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", data, err)
	}
	*f = FlexInt(n)
	return nil
}

// textContent is Flickr's {"_content": "..."} wrapper.
type textContent struct {
	Content string `json:"_content"`
}

type institutionsResponse struct {
	Institutions struct {
		Institution []struct {
			NSID string       `json:"nsid"`
			Name *textContent `json:"name"`
		} `json:"institution"`
	} `json:"institutions"`
}

func (r *institutionsResponse) toModels() []models.Institution {
	out := make([]models.Institution, 0, len(r.Institutions.Institution))
	for _, inst := range r.Institutions.Institution {
		name := "unknown"
		if inst.Name != nil && inst.Name.Content != "" {
			name = inst.Name.Content
		}
		out = append(out, models.Institution{ID: inst.NSID, Name: name})
	}
	return out
}

// PhotoPage is one page of a photo listing. Photos are kept raw so the
// extractor sees exactly what the API sent.
type PhotoPage struct {
	Page    FlexInt           `json:"page"`
	Pages   FlexInt           `json:"pages"`
	PerPage FlexInt           `json:"perpage"`
	Total   FlexInt           `json:"total"`
	Photos  []json.RawMessage `json:"photo"`
}

type photosResponse struct {
	Photos PhotoPage `json:"photos"`
}
