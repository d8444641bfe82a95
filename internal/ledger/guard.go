package ledger

// AccessGuard holds the two privileged identities and the pause circuit
// breaker, and answers every capability question the ledger asks. It does no
// locking of its own; the owning Ledger serializes access to it.
type AccessGuard struct {
	admin  Principal
	oracle Principal
	paused bool
}

// NewAccessGuard creates a guard governed by admin. The admin also serves as
// the oracle until a dedicated feed identity is designated.
func NewAccessGuard(admin Principal) *AccessGuard {
	return &AccessGuard{admin: admin, oracle: admin}
}

// Admin returns the current admin identity.
func (g *AccessGuard) Admin() Principal {
	return g.admin
}

// Oracle returns the identity currently authorized to push stage updates on
// behalf of off-chain data feeds.
func (g *AccessGuard) Oracle() Principal {
	return g.oracle
}

// Paused reports whether the circuit breaker is engaged.
func (g *AccessGuard) Paused() bool {
	return g.paused
}

// IsAdmin reports whether caller holds the admin capability.
func (g *AccessGuard) IsAdmin(caller Principal) bool {
	return caller == g.admin
}

// CanMutate reports whether mutating batch operations are currently allowed.
func (g *AccessGuard) CanMutate() bool {
	return !g.paused
}

// CanAuthorizeUpdate reports whether caller may push a stage update for a
// batch held by owner: the owner itself, or the designated oracle.
func (g *AccessGuard) CanAuthorizeUpdate(caller, owner Principal) bool {
	if caller == owner {
		return true
	}
	return !g.oracle.IsZero() && caller == g.oracle
}

func (g *AccessGuard) setAdmin(p Principal)  { g.admin = p }
func (g *AccessGuard) setOracle(p Principal) { g.oracle = p }
func (g *AccessGuard) setPaused(flag bool)   { g.paused = flag }
