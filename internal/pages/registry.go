package pages

import (
	"net/url"
	"strings"
	"sync"
)

// Handler serves a custom page request. It receives the request's query
// or form values and returns the response body.
type Handler func(params url.Values) (string, error)

// Page is one user-registered entry: a path with optional static content
// and optional GET/POST handlers.
type Page struct {
	Path    string
	Content string
	Get     Handler
	Post    Handler
}

// Registry is the ordered, append-only list of user-registered pages
// that augments the portal's fixed route set. Registering a path twice
// merges into the existing entry instead of duplicating it; insertion
// order is preserved, and the first registered page doubles as the
// portal's custom-page shortcut.
type Registry struct {
	mu    sync.Mutex
	pages []*Page
	index map[string]*Page
}

// NewRegistry creates an empty page registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Page)}
}

// Register adds a page or merges into an existing entry for the same
// path. Non-nil handlers overwrite; content is only overwritten when the
// call provides it, so a later handler-only registration keeps the page's
// content intact. There is no unregister: the set only grows.
func (r *Registry) Register(path, content string, get, post Handler) {
	path = normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.index[path]; ok {
		if content != "" {
			existing.Content = content
		}
		if get != nil {
			existing.Get = get
		}
		if post != nil {
			existing.Post = post
		}
		return
	}

	page := &Page{Path: path, Content: content, Get: get, Post: post}
	r.pages = append(r.pages, page)
	r.index[path] = page
}

// Lookup returns the page registered for path, or nil.
func (r *Registry) Lookup(path string) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index[normalizePath(path)]
}

// Pages returns the registered pages in insertion order.
func (r *Registry) Pages() []*Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Page(nil), r.pages...)
}

// First returns the earliest registered page, or nil. It is the entry
// shown as the custom-page shortcut on the portal.
func (r *Registry) First() *Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pages) == 0 {
		return nil
	}
	return r.pages[0]
}

// Len returns the number of registered pages
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// normalizePath guarantees a single leading slash
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
