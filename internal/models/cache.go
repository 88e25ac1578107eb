package models

import (
	"net/http"
	"time"
)

// CachedResponse is a snapshot of a successful HTTP response stored in a cache bucket.
// Entries are immutable once written; a later write with the same request identity
// replaces the prior entry.
type CachedResponse struct {
	CachedAt   time.Time         `json:"cached_at"`
	Header     http.Header       `json:"header"`
	Vary       map[string]string `json:"vary,omitempty"` // Vary значения заголовков запроса, перечисленных в Vary ответа
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Body       []byte            `json:"body"`
	StatusCode int               `json:"status_code"`
}

// Size returns the approximate number of bytes held by the snapshot.
func (c *CachedResponse) Size() int64 {
	size := int64(len(c.Body))
	for k, values := range c.Header {
		for _, v := range values {
			size += int64(len(k) + len(v))
		}
	}
	return size
}

// MatchesVary reports whether the request headers carry the same values
// the snapshot was stored with for every header named in Vary.
func (c *CachedResponse) MatchesVary(h http.Header) bool {
	for name, value := range c.Vary {
		if name == "*" {
			return false
		}
		if h.Get(name) != value {
			return false
		}
	}
	return true
}
