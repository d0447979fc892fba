package idos

import "slices"

// Registry tracks which record keys claim which identifiers for a single
// owner during a single pass.
//
// It starts from the owner's stored identifiers (pending claims) and records
// every decision the Resolver makes (resolved claims). A Registry must not
// be shared between owners or reused across passes.
type Registry struct {
	claims   map[string][]string // identifier -> keys, in claim order
	held     map[string]string   // key -> identifier it currently claims
	exact    map[string]string   // key -> stored idOS, when stored as a string
	resolved map[string]bool
}

// NewRegistry builds the registry from an owner's current records.
//
// Each stored idOS is registered under its canonical form, or under the raw
// value when it cannot be canonicalized so that the claim is not lost.
// Several keys may share an identifier here; resolving those duplicates is
// the Resolver's job.
func NewRegistry(records []Record) *Registry {
	r := &Registry{
		claims:   make(map[string][]string),
		held:     make(map[string]string),
		exact:    make(map[string]string),
		resolved: make(map[string]bool),
	}
	for _, rec := range records {
		if !rec.HasIDOS() {
			continue
		}
		id, ok := Canonicalize(rec.IDOS)
		if !ok {
			id = rec.IDOS
		}
		r.add(id, rec.Key)
		if !rec.IDOSNotString {
			r.exact[rec.Key] = rec.IDOS
		}
	}
	return r
}

// IsClaimed reports whether any key claims id.
func (r *Registry) IsClaimed(id string) bool {
	return len(r.claims[id]) > 0
}

// Claimants returns the keys claiming id, in claim order.
func (r *Registry) Claimants(id string) []string {
	return slices.Clone(r.claims[id])
}

// Claim records id as the final identifier for key in this pass. Any other
// identifier the key claimed is released. Claiming the same id twice is a
// no-op.
func (r *Registry) Claim(id, key string) {
	r.resolved[key] = true
	prev, ok := r.held[key]
	if ok && prev == id {
		return
	}
	if ok {
		r.release(prev, key)
	}
	r.add(id, key)
}

// Len returns the number of distinct identifiers claimed.
func (r *Registry) Len() int {
	return len(r.claims)
}

func (r *Registry) add(id, key string) {
	if slices.Contains(r.claims[id], key) {
		return
	}
	r.claims[id] = append(r.claims[id], key)
	r.held[key] = id
}

func (r *Registry) release(id, key string) {
	keys := slices.DeleteFunc(r.claims[id], func(k string) bool { return k == key })
	if len(keys) == 0 {
		delete(r.claims, id)
	} else {
		r.claims[id] = keys
	}
	delete(r.held, key)
}

// takenByOther reports whether any key other than key claims id.
func (r *Registry) takenByOther(id, key string) bool {
	for _, other := range r.claims[id] {
		if other != key {
			return true
		}
	}
	return false
}

// contested reports whether another key has precedence over key for id.
//
// A key already resolved in this pass always wins. A pending key that stores
// id verbatim wins over key unless key stores id verbatim too, in which case
// key comes first in iteration order. Pending keys that still need rewriting
// never win: they will meet key's resolved claim when their turn comes.
func (r *Registry) contested(id, key string, keyIsExact bool) bool {
	for _, other := range r.claims[id] {
		if other == key {
			continue
		}
		if r.resolved[other] {
			return true
		}
		if !keyIsExact {
			if stored, ok := r.exact[other]; ok && stored == id {
				return true
			}
		}
	}
	return false
}
