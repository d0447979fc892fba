package testutil

// WithDuplicateIDs adds tasks whose ids canonicalize to the same value.
// After a pass k1 holds X-Y and k2 holds X-Y-1.
func (b *Builder) WithDuplicateIDs(owner string) *Builder {
	return b.
		WithTask(owner, "k1", ID("X Y")).
		WithTask(owner, "k2", ID("x-y"))
}

// WithStandardTestData adds one owner of every shape a pass meets.
//
// Structure:
//
//	alice: duplicates, a missing id, a non-canonical idOS, a clean idOS
//	bob:   a numeric id and a non-ASCII id
//	carol: no tasks
func (b *Builder) WithStandardTestData() *Builder {
	return b.
		WithDuplicateIDs("alice").
		WithTask("alice", "abc123xyz").
		WithTask("alice", "k3", IDOS("  fix  bug ")).
		WithTask("alice", "k4", IDOS("CLEAN-1")).
		WithTask("bob", "n1", ID(42)).
		WithTask("bob", "n2", ID("peça 12")).
		WithOwner("carol")
}
