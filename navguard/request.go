package navguard

import (
	"net/http"
	"net/url"
)

// NavigationCause stores what triggered a navigation attempt
type NavigationCause int8

const (
	// CauseLinkActivated a user tapped or clicked a link
	CauseLinkActivated NavigationCause = iota + 1
	// CauseFormSubmit a form was submitted
	CauseFormSubmit
	// CauseBackForward history traversal
	CauseBackForward
	// CauseReload the page was reloaded
	CauseReload
	// CauseOther programmatic or otherwise unattributed
	CauseOther
)

// CachePolicy mirrors the engine's cache directive for a request
type CachePolicy int8

const (
	// CacheDefault use protocol cache semantics
	CacheDefault CachePolicy = iota + 1
	// CacheReload bypass the cache entirely
	CacheReload
	// CacheReturnElseLoad prefer the cache, load on miss
	CacheReturnElseLoad
)

// Request is an immutable snapshot of one navigation attempt. The engine
// creates it once per attempt; a replacement Request is constructed when
// redirection is needed, the original is never mutated.
type Request struct {
	URL             *url.URL
	Method          string
	Headers         http.Header
	IsMainFrame     bool
	Cause           NavigationCause
	CachePolicy     CachePolicy
	MainDocumentURL *url.URL // top-level page that initiated this request
	HasSourceFrame  bool
	UserGesture     bool   // true only for a genuine user tap, not synthetic clicks
	AuthToken       string // privileged-scheme authorization, empty for web content

	// IsInternalRedirect marks a replacement request produced by the
	// resolver this navigation, so stripping is not applied twice
	IsInternalRedirect bool
	// RedirectSourceURL is the URL that server-redirected to this request,
	// if any
	RedirectSourceURL *url.URL
	// InitiatorURL is the document that initiated the request
	InitiatorURL *url.URL
}

// Clone produces a deep enough copy for building replacement requests
func (r *Request) Clone() *Request {
	c := *r
	if r.URL != nil {
		u := *r.URL
		c.URL = &u
	}
	if r.MainDocumentURL != nil {
		u := *r.MainDocumentURL
		c.MainDocumentURL = &u
	}
	c.Headers = make(http.Header, len(r.Headers))
	for k, v := range r.Headers {
		vals := make([]string, len(v))
		copy(vals, v)
		c.Headers[k] = vals
	}
	return &c
}

// WithURL clones the request with a new target URL
func (r *Request) WithURL(u *url.URL) *Request {
	c := r.Clone()
	c.URL = u
	return c
}

// IsWebScheme reports whether the request targets regular web content
func (r *Request) IsWebScheme() bool {
	if r.URL == nil {
		return false
	}
	return r.URL.Scheme == "http" || r.URL.Scheme == "https"
}

// Response is the engine's answer for a previously allowed request
type Response struct {
	URL              *url.URL
	MIMEType         string
	Headers          http.Header
	Cookies          []*http.Cookie
	IsMainFrame      bool
	CanShowInWebView bool // engine claims it can render this MIME itself
	PendingDownload  bool // a download was explicitly requested for this load
	OriginIsEmptyTab bool // response arrived into a bare about:blank shell
}
