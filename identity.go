package auth

import "strconv"

// Source tags where an identity was resolved from.
type Source string

const (
	SourceNone    Source = ""
	SourcePrimary Source = "primary"
	SourceCustom  Source = "custom"
	SourceRefresh Source = "refresh"
)

// IdentityRecord is a fully resolved identity. It is built fresh for
// every request and never cached.
type IdentityRecord struct {
	ID         uint64         `json:"id"`
	Source     Source         `json:"source"`
	Username   string         `json:"username,omitempty"`
	Email      string         `json:"email,omitempty"`
	Role       string         `json:"role,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// NewIdentityRecord maps a store identity onto a record tagged with source.
func NewIdentityRecord(id uint64, source Source, identity Identity) *IdentityRecord {
	record := &IdentityRecord{ID: id, Source: source}
	if identity == nil {
		return record
	}

	record.Username = identity.Username()
	record.Email = identity.Email()
	record.Role = identity.Role()

	if attr, ok := identity.(interface{ Attributes() map[string]any }); ok {
		if src := attr.Attributes(); len(src) > 0 {
			record.Attributes = make(map[string]any, len(src))
			for k, v := range src {
				record.Attributes[k] = v
			}
		}
	}
	return record
}

// MinimalIdentity is what a refresh exchange yields: a subject id and
// nothing else. It only lets a client obtain a fresh access credential.
type MinimalIdentity struct {
	ID uint64 `json:"id"`
}

func (m MinimalIdentity) String() string {
	return "refresh:" + strconv.FormatUint(m.ID, 10)
}

// AuthContext is the request scoped attachment point for the resolved
// identity. It holds at most one IdentityRecord.
type AuthContext struct {
	Identity *IdentityRecord
	Minimal  *MinimalIdentity
	State    GateState
	Source   Source
	Reason   DenyReason
}

// Authenticated reports whether a fully verified identity is attached.
func (a *AuthContext) Authenticated() bool {
	return a != nil && a.Identity != nil
}

// SubjectID returns the id of whichever identity is attached, or 0.
func (a *AuthContext) SubjectID() uint64 {
	switch {
	case a == nil:
		return 0
	case a.Identity != nil:
		return a.Identity.ID
	case a.Minimal != nil:
		return a.Minimal.ID
	default:
		return 0
	}
}

func authContextFromDecision(d Decision) *AuthContext {
	return &AuthContext{
		Identity: d.Identity,
		Minimal:  d.Minimal,
		State:    d.State,
		Source:   d.Source,
		Reason:   d.Reason,
	}
}
