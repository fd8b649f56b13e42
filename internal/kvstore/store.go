// Package kvstore holds the per-client key-value state that backs a browser
// client's session record. Every client owns one namespace; backends only
// differ in where the namespaces live.
package kvstore

import "strings"

type Backend interface {
	Get(ns, key string) (string, bool, error)
	Set(ns, key, value string) error
	Delete(ns string, keys ...string) error
	Keys(ns string) ([]string, error)
	Clear(ns string) error
}

// Namespace is a Backend bound to a single client.
type Namespace struct {
	backend Backend
	ns      string
}

func Bind(b Backend, ns string) Namespace {
	return Namespace{backend: b, ns: strings.TrimSpace(ns)}
}

func (n Namespace) Name() string { return n.ns }

func (n Namespace) Get(key string) (string, bool, error) {
	return n.backend.Get(n.ns, key)
}

func (n Namespace) Set(key, value string) error {
	return n.backend.Set(n.ns, key, value)
}

func (n Namespace) Delete(keys ...string) error {
	return n.backend.Delete(n.ns, keys...)
}

func (n Namespace) Keys() ([]string, error) {
	return n.backend.Keys(n.ns)
}

func (n Namespace) Clear() error {
	return n.backend.Clear(n.ns)
}
