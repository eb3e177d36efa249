package sync

// SessionDecision tells the client what to do with its local draft cache
// after authentication.
type SessionDecision struct {
	ShouldClear bool   `json:"should_clear"`
	Owner       string `json:"owner"`
}

// ReconcileSessionOwner compares the previously recorded session owner with
// the newly authenticated one. When they differ, the local cache keys must
// be cleared so drafts never leak between accounts sharing a browser
// profile. A first session (empty lastOwner) keeps whatever is cached.
func ReconcileSessionOwner(lastOwner, newOwner string) SessionDecision {
	return SessionDecision{
		ShouldClear: lastOwner != "" && lastOwner != newOwner,
		Owner:       newOwner,
	}
}
