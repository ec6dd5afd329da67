package domain

// RejectReason classifies why a bind attempt was refused.
type RejectReason string

const (
	// RejectSessionAlreadyOwned means the session key already maps to a
	// different terminal.
	RejectSessionAlreadyOwned RejectReason = "session_already_owned"

	// RejectTerminalAlreadyBound means the terminal already holds a
	// different session key.
	RejectTerminalAlreadyBound RejectReason = "terminal_already_bound"

	// RejectTerminalNotFound means the terminal is not registered, or
	// already exited.
	RejectTerminalNotFound RejectReason = "terminal_not_found"
)

// BindResult is the outcome of a bind attempt. Rejections are values, not
// errors: a failed bind leaves both maps untouched.
type BindResult struct {
	OK     bool         `json:"ok"`
	Reason RejectReason `json:"reason,omitempty"`

	// Owner carries the existing terminal id on session_already_owned.
	Owner string `json:"owner,omitempty"`

	// Existing carries the terminal's current session key on
	// terminal_already_bound.
	Existing SessionKey `json:"existing,omitzero"`
}

// BindSuccess is the result of an accepted (or idempotently repeated) bind.
func BindSuccess() BindResult {
	return BindResult{OK: true}
}

// BindRejectedOwned reports that key is already owned by owner.
func BindRejectedOwned(owner string) BindResult {
	return BindResult{OK: false, Reason: RejectSessionAlreadyOwned, Owner: owner}
}

// BindRejectedBound reports that the terminal already holds existing.
func BindRejectedBound(existing SessionKey) BindResult {
	return BindResult{OK: false, Reason: RejectTerminalAlreadyBound, Existing: existing}
}

// AssociationResult is the outcome of one single-shot pairing attempt.
type AssociationResult struct {
	Associated bool   `json:"associated"`
	TerminalID string `json:"terminal_id,omitempty"`
}
