package ledger

// Principal is an opaque caller or owner identity. The ledger only ever
// compares principals for equality; it never inspects their contents.
type Principal string

// IsZero reports whether the principal is absent. An absent principal is
// rejected wherever a real identity is required (new admin, new oracle,
// batch owner).
func (p Principal) IsZero() bool {
	return p == ""
}

// String returns the raw identity token.
func (p Principal) String() string {
	return string(p)
}
