package idos

import (
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	generatedPrefix = "TASK-"
	generatedKeyLen = 6
)

// Action describes what the Resolver decided for a record.
type Action string

const (
	// ActionAssigned: the record had no idOS and received one.
	ActionAssigned Action = "assigned"
	// ActionNormalized: the stored idOS was rewritten to its canonical form.
	ActionNormalized Action = "normalized"
	// ActionDeduplicated: the canonical form was taken and a suffix was added.
	ActionDeduplicated Action = "deduplicated"
	// ActionUnchanged: the stored idOS is canonical and unique.
	ActionUnchanged Action = "unchanged"
	// ActionPreserved: the stored idOS cannot be canonicalized and is kept.
	ActionPreserved Action = "preserved"
	// ActionRegenerated: an uncanonicalizable idOS duplicated an earlier
	// record's and was replaced by a generated identifier.
	ActionRegenerated Action = "regenerated"
)

// Decision is the outcome of resolving one record.
type Decision struct {
	Key      string
	Previous string
	IDOS     string
	Action   Action
	Changed  bool
}

// Options tunes identifier derivation.
type Options struct {
	// DeriveFromKey uses the record key as the source when a record has
	// neither idOS nor id. When false such records receive a generated
	// TASK-XXXXXX identifier.
	DeriveFromKey bool
}

// Resolver decides the idOS each record should carry.
type Resolver struct {
	opts Options
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve decides the identifier for rec and records the claim in reg.
// Records of one owner must be resolved in a stable order against the same
// Registry; each decision is visible to the ones that follow.
func (r *Resolver) Resolve(rec Record, reg *Registry) Decision {
	if !rec.HasIDOS() {
		return r.assign(rec, reg)
	}
	return r.reconcile(rec, reg)
}

func (r *Resolver) assign(rec Record, reg *Registry) Decision {
	source := rec.ID
	if source == "" && r.opts.DeriveFromKey {
		source = rec.Key
	}

	base, ok := Canonicalize(source)
	if !ok {
		base = generatedID(rec.Key)
	}

	// The record holds no claim yet, so any claimant blocks.
	id := firstFree(base, reg.IsClaimed)
	reg.Claim(id, rec.Key)

	return Decision{Key: rec.Key, IDOS: id, Action: ActionAssigned, Changed: true}
}

func (r *Resolver) reconcile(rec Record, reg *Registry) Decision {
	unchanged := Decision{Key: rec.Key, Previous: rec.IDOS, IDOS: rec.IDOS}

	canonical, ok := Canonicalize(rec.IDOS)
	if !ok {
		if !rec.IDOSNotString && !reg.contested(rec.IDOS, rec.Key, true) {
			reg.Claim(rec.IDOS, rec.Key)
			unchanged.Action = ActionPreserved
			return unchanged
		}
		id := firstFree(generatedID(rec.Key), func(c string) bool {
			return reg.takenByOther(c, rec.Key)
		})
		reg.Claim(id, rec.Key)
		return Decision{Key: rec.Key, Previous: rec.IDOS, IDOS: id, Action: ActionRegenerated, Changed: true}
	}

	exact := canonical == rec.IDOS && !rec.IDOSNotString
	if exact && !reg.contested(canonical, rec.Key, true) {
		reg.Claim(canonical, rec.Key)
		unchanged.Action = ActionUnchanged
		return unchanged
	}

	id := canonical
	if reg.contested(canonical, rec.Key, exact) {
		id = firstFreeFrom(canonical, 1, func(c string) bool {
			return reg.contested(c, rec.Key, false)
		})
	}
	reg.Claim(id, rec.Key)

	action := ActionNormalized
	if id != canonical {
		action = ActionDeduplicated
	}
	return Decision{Key: rec.Key, Previous: rec.IDOS, IDOS: id, Action: action, Changed: true}
}

// generatedID builds TASK- followed by the first six characters of the key,
// canonicalized so the result is stable across passes.
func generatedID(key string) string {
	head := []rune(key)
	if len(head) > generatedKeyLen {
		head = head[:generatedKeyLen]
	}
	id, _ := Canonicalize(generatedPrefix + cases.Upper(language.Und).String(string(head)))
	return id
}

// firstFree returns base if it is free, otherwise the first free suffixed form.
func firstFree(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	return firstFreeFrom(base, 1, taken)
}

func firstFreeFrom(base string, n int, taken func(string) bool) string {
	for ; ; n++ {
		if c := withSuffix(base, n); !taken(c) {
			return c
		}
	}
}

// withSuffix appends -n and re-canonicalizes, so a base ending in a dash
// does not produce a double dash.
func withSuffix(base string, n int) string {
	c, _ := Canonicalize(base + "-" + strconv.Itoa(n))
	return c
}
