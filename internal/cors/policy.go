// Package cors decides which browser origins may read responses and sets the
// matching Access-Control headers.
package cors

import "strings"

const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderMaxAge       = "Access-Control-Max-Age"

	allowedMethods  = "POST, OPTIONS"
	allowedHeaders  = "Content-Type"
	preflightMaxAge = "86400"
)

// Policy is an exact-match origin allow-list. An empty list allows every
// origin. Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	allowed []string
}

// NewPolicy returns a Policy for the given origins. Blank entries are dropped.
func NewPolicy(origins []string) *Policy {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	return &Policy{allowed: allowed}
}

// ParseOrigins splits a comma-separated allow-list.
func ParseOrigins(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsAllowed reports whether origin may receive a readable response.
// An empty origin means the caller sent none.
func (p *Policy) IsAllowed(origin string) bool {
	if len(p.allowed) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, a := range p.allowed {
		if a == origin {
			return true
		}
	}
	return false
}

// Decorate adds the CORS headers to headers when origin is present and
// allowed. It never changes anything else, and returns whether it did
// anything.
func (p *Policy) Decorate(headers map[string]string, origin string) bool {
	if origin == "" || !p.IsAllowed(origin) {
		return false
	}
	headers[HeaderAllowOrigin] = origin
	headers[HeaderAllowMethods] = allowedMethods
	headers[HeaderAllowHeaders] = allowedHeaders
	return true
}

// Preflight returns the headers for an OPTIONS response. A rejected origin
// gets no CORS headers at all.
func (p *Policy) Preflight(origin string) map[string]string {
	headers := map[string]string{}
	if p.Decorate(headers, origin) {
		headers[HeaderMaxAge] = preflightMaxAge
	}
	return headers
}
