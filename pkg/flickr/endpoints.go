package flickr

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	// BaseURL is the Flickr REST endpoint
	BaseURL = "https://api.flickr.com/services/rest/"

	MethodGetInstitutions = "flickr.commons.getInstitutions"
	MethodSearchPhotos    = "flickr.photos.search"
	MethodGetPublicPhotos = "flickr.people.getPublicPhotos"

	// DefaultPerPage is the page size used when none is configured
	DefaultPerPage = 500
	// MaxPerPage is the largest page size the API honours
	MaxPerPage = 500
)

// PhotoExtras are requested with every page of public photos.
var PhotoExtras = []string{
	"description",
	"date_upload",
	"date_taken",
	"geo",
	"tags",
	"o_dims",
	"url_o",
	"url_c",
	"license",
	"owner_name",
	"views",
}

// InstitutionsParams builds the query for flickr.commons.getInstitutions.
func InstitutionsParams() url.Values {
	return url.Values{}
}

// CountParams builds the cheapest query that still reports an
// institution's total photo count.
func CountParams(userID string) url.Values {
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("is_commons", "true")
	params.Set("per_page", "1")
	params.Set("page", "1")
	params.Set("extras", "url_o")
	return params
}

// PublicPhotosParams builds the query for one page of public photos.
func PublicPhotosParams(userID string, page, perPage int) url.Values {
	if perPage <= 0 {
		perPage = DefaultPerPage
	} else if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}

	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("extras", strings.Join(PhotoExtras, ","))
	return params
}

// Sign computes the legacy api_sig: the MD5 of the shared secret followed by
// every parameter name and value, sorted by name.
func Sign(secret string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "api_sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(secret)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
