package session

import (
	"net/http"
	"sync"
)

// Jar is the cookie surface the Reader mirrors authentication state into.
type Jar interface {
	Get(name string) (string, bool)
	Set(name, value string)
	Expire(name string)
}

// MemoryJar is a Jar without a browser behind it.
type MemoryJar struct {
	mu      sync.Mutex
	cookies map[string]string
}

func NewMemoryJar() *MemoryJar {
	return &MemoryJar{cookies: make(map[string]string)}
}

func (j *MemoryJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	v, ok := j.cookies[name]
	return v, ok
}

func (j *MemoryJar) Set(name, value string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies[name] = value
}

func (j *MemoryJar) Expire(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.cookies, name)
}

// HTTPJar reads cookies from the request and writes Set-Cookie headers on the
// response. Writes are visible to later reads within the same request.
type HTTPJar struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool

	written map[string]*string
}

func NewHTTPJar(w http.ResponseWriter, r *http.Request, secure bool) *HTTPJar {
	return &HTTPJar{w: w, r: r, secure: secure, written: make(map[string]*string)}
}

func (j *HTTPJar) Get(name string) (string, bool) {
	if v, ok := j.written[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (j *HTTPJar) Set(name, value string) {
	v := value
	j.written[name] = &v
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j *HTTPJar) Expire(name string) {
	j.written[name] = nil
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
