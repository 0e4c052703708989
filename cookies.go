package goSession

import (
	"net/http"
	"time"
)

// CookieJar is the per-request view of cookies. It reads what the client
// sent and collects the Set-Cookie changes the engine makes, so that a
// middleware can flush them before the response is written.
//
// A CookieJar is not safe for concurrent use. A nil jar reads as empty and
// discards writes.
type CookieJar struct {
	incoming map[string]string
	pending  map[string]*http.Cookie
	order    []string
}

// NewCookieJar snapshots r's cookies. r may be nil.
func NewCookieJar(r *http.Request) *CookieJar {
	j := &CookieJar{
		incoming: make(map[string]string),
		pending:  make(map[string]*http.Cookie),
	}
	if r == nil {
		return j
	}
	for _, c := range r.Cookies() {
		// first occurrence wins, as with Request.Cookie
		if _, seen := j.incoming[c.Name]; !seen {
			j.incoming[c.Name] = c.Value
		}
	}
	return j
}

// Get returns the current value of name, taking pending changes into
// account. A pending deletion reads as absent.
func (j *CookieJar) Get(name string) (string, bool) {
	if j == nil {
		return "", false
	}
	if c, ok := j.pending[name]; ok {
		if c.MaxAge < 0 {
			return "", false
		}
		return c.Value, true
	}
	v, ok := j.incoming[name]
	return v, ok
}

// Set records c to be sent with the response, replacing an earlier change
// to the same name.
func (j *CookieJar) Set(c *http.Cookie) {
	if j == nil || c == nil || c.Name == "" {
		return
	}
	if _, ok := j.pending[c.Name]; !ok {
		j.order = append(j.order, c.Name)
	}
	cp := *c
	j.pending[c.Name] = &cp
}

// Delete expires tmpl.Name on the client. It does nothing when the client
// never sent the cookie and nothing is pending for it.
func (j *CookieJar) Delete(tmpl *http.Cookie) {
	if j == nil || tmpl == nil {
		return
	}
	_, sent := j.incoming[tmpl.Name]
	_, pending := j.pending[tmpl.Name]
	if !sent && !pending {
		return
	}
	c := *tmpl
	c.Value = ""
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	j.Set(&c)
}

// Pending returns copies of the recorded changes in first-set order.
func (j *CookieJar) Pending() []*http.Cookie {
	if j == nil {
		return nil
	}
	out := make([]*http.Cookie, 0, len(j.order))
	for _, name := range j.order {
		cp := *j.pending[name]
		out = append(out, &cp)
	}
	return out
}

// Flush writes every pending change as a Set-Cookie header on w.
func (j *CookieJar) Flush(w http.ResponseWriter) {
	for _, c := range j.Pending() {
		http.SetCookie(w, c)
	}
}

/*
====================================
SESSION COOKIES
====================================
*/

func (e *Engine) accessCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     e.config.Cookie.AccessName,
		Value:    value,
		Path:     e.config.Cookie.Path,
		Domain:   e.config.Cookie.Domain,
		MaxAge:   int(e.config.JWT.AccessTTL / time.Second),
		HttpOnly: true,
		Secure:   e.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (e *Engine) refreshCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     e.config.Cookie.RefreshName,
		Value:    value,
		Path:     e.config.Cookie.Path,
		Domain:   e.config.Cookie.Domain,
		MaxAge:   int(e.config.Tokens.RefreshTTL / time.Second),
		HttpOnly: true,
		Secure:   e.config.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (e *Engine) setSessionCookies(jar *CookieJar, access, refresh string) {
	jar.Set(e.accessCookie(access))
	jar.Set(e.refreshCookie(refresh))
}

func (e *Engine) clearAccessCookie(jar *CookieJar) {
	jar.Delete(e.accessCookie(""))
}

func (e *Engine) clearSessionCookies(jar *CookieJar) {
	jar.Delete(e.accessCookie(""))
	jar.Delete(e.refreshCookie(""))
}
