// Package sessionid provides anonymous conversation identity primitives.
package sessionid

import (
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderName = "X-Cityline-Session-ID"
	QueryParam = "session_id"
)

var pattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// New returns a fresh random session id.
func New() string {
	return uuid.NewString()
}

// Sanitize trims id and reports whether it is an acceptable session id.
func Sanitize(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || !pattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// FromRequest returns the session id carried by the header or the query
// string, or "" when there is none or it is malformed.
func FromRequest(r *http.Request) string {
	sid := r.Header.Get(HeaderName)
	if sid == "" {
		sid = r.URL.Query().Get(QueryParam)
	}
	sid, _ = Sanitize(sid)
	return sid
}

// IPFromRequest returns a normalized remote IP for rate limiting and
// request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
