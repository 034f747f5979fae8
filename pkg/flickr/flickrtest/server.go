// Package flickrtest provides an in-memory Flickr REST server for tests.
package flickrtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// Server simulates the three Flickr methods the crawler uses.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	institutions []institution
	totals       map[string]int
	pages        map[string][][]map[string]any
	failures     map[string][]failure
	calls        map[string]int
	pageRequests map[string][]int
	apiKeys      []string
}

type institution struct {
	id   string
	name string
}

type failure struct {
	status  int
	code    int
	message string
}

// NewServer starts a fake Flickr API. Close it when done.
func NewServer() *Server {
	s := &Server{
		totals:       make(map[string]int),
		pages:        make(map[string][][]map[string]any),
		failures:     make(map[string][]failure),
		calls:        make(map[string]int),
		pageRequests: make(map[string][]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Photo builds a minimal photo object the way the API sends it.
func Photo(id string) map[string]any {
	return map[string]any{
		"id":          id,
		"secret":      "s" + id,
		"title":       map[string]any{"_content": "Photo " + id},
		"description": map[string]any{"_content": ""},
		"datetaken":   "1920-01-01 00:00:00",
		"dateupload":  "1199145600",
		"latitude":    0,
		"longitude":   0,
		"o_width":     "800",
		"o_height":    "600",
		"url_o":       "https://live.staticflickr.com/" + id + "_o.jpg",
	}
}

// Photos builds one photo per id.
func Photos(ids ...string) []map[string]any {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, Photo(id))
	}
	return out
}

// AddInstitution registers a Commons member and its remote total.
func (s *Server) AddInstitution(id, name string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.institutions = append(s.institutions, institution{id: id, name: name})
	s.totals[id] = total
}

// SetPages sets the public photo pages of a user, page 1 first. Pages past
// the end are served empty.
func (s *Server) SetPages(userID string, pages ...[]map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[userID] = pages
}

// FailNext makes the next call of method answer with a Flickr API error.
func (s *Server) FailNext(method string, code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], failure{code: code, message: message})
}

// FailNextHTTP makes the next call of method answer with an HTTP status.
func (s *Server) FailNextHTTP(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], failure{status: status})
}

// Calls returns how many times method was called.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// PageRequests returns the pages requested for userID, in order, including
// requests that were answered with an injected failure.
func (s *Server) PageRequests(userID string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pageRequests[userID]...)
}

// APIKeys returns the api_key of every request received.
func (s *Server) APIKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.apiKeys...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	method := q.Get("method")

	s.mu.Lock()
	s.calls[method]++
	s.apiKeys = append(s.apiKeys, q.Get("api_key"))
	if method == "flickr.people.getPublicPhotos" {
		page, _ := strconv.Atoi(q.Get("page"))
		s.pageRequests[q.Get("user_id")] = append(s.pageRequests[q.Get("user_id")], page)
	}
	var fail *failure
	if queued := s.failures[method]; len(queued) > 0 {
		fail = &queued[0]
		s.failures[method] = queued[1:]
	}
	s.mu.Unlock()

	if fail != nil {
		if fail.status != 0 {
			w.WriteHeader(fail.status)
			return
		}
		writeJSON(w, map[string]any{"stat": "fail", "code": fail.code, "message": fail.message})
		return
	}

	switch method {
	case "flickr.commons.getInstitutions":
		s.handleInstitutions(w)
	case "flickr.photos.search":
		s.handleSearch(w, q.Get("user_id"))
	case "flickr.people.getPublicPhotos":
		page, _ := strconv.Atoi(q.Get("page"))
		s.handlePublicPhotos(w, q.Get("user_id"), page)
	default:
		writeJSON(w, map[string]any{"stat": "fail", "code": 112, "message": "Method \"" + method + "\" not found"})
	}
}

func (s *Server) handleInstitutions(w http.ResponseWriter) {
	s.mu.Lock()
	list := make([]map[string]any, 0, len(s.institutions))
	for _, inst := range s.institutions {
		list = append(list, map[string]any{
			"nsid":        inst.id,
			"date_launch": "1200470400",
			"name":        map[string]any{"_content": inst.name},
		})
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"institutions": map[string]any{"institution": list},
		"stat":         "ok",
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, userID string) {
	s.mu.Lock()
	total := s.totals[userID]
	s.mu.Unlock()

	// The real API reports totals as strings on this method.
	writeJSON(w, map[string]any{
		"photos": map[string]any{
			"page":    1,
			"pages":   total,
			"perpage": 1,
			"total":   strconv.Itoa(total),
			"photo":   []any{},
		},
		"stat": "ok",
	})
}

func (s *Server) handlePublicPhotos(w http.ResponseWriter, userID string, page int) {
	s.mu.Lock()
	pages := s.pages[userID]
	total := s.totals[userID]
	var photos []map[string]any
	if page >= 1 && page <= len(pages) {
		photos = pages[page-1]
	}
	s.mu.Unlock()

	if photos == nil {
		photos = []map[string]any{}
	}
	writeJSON(w, map[string]any{
		"photos": map[string]any{
			"page":    page,
			"pages":   len(pages),
			"perpage": 500,
			"total":   total,
			"photo":   photos,
		},
		"stat": "ok",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
