// Package flickr provides a client for the Flickr REST API methods used to
// harvest Flickr Commons metadata.
//
// This package includes:
//   - Institution listing (flickr.commons.getInstitutions)
//   - Remote photo totals (flickr.photos.search with per_page=1)
//   - Paged public photo listings (flickr.people.getPublicPhotos)
//   - Optional request signing when an API secret is configured
//
// Failed calls come back as *errors.Error. Code 201 and HTTP 429 are
// classified as rate limits and are never retried here; the caller decides
// how long to cool down. Network failures and 5xx responses are retried.
//
// Example usage:
//
//	client := flickr.NewClient(flickr.Config{
//	    APIKey:  key,
//	    Limiter: ratelimit.NewTokenBucket(60, 5),
//	}, logger.GetLogger())
//
//	institutions, err := client.GetInstitutions(ctx)
//	page, err := client.GetPublicPhotos(ctx, institutions[0].ID, 1, flickr.DefaultPerPage)
package flickr
