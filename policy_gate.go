package auth

import "context"

// GateState is the position of a single gate decision in the
// Unverified → SessionPresent | Attempting → Verified* | Denied machine.
type GateState int

const (
	StateUnverified GateState = iota
	StateSessionPresent
	StateAttempting
	StateVerifiedPrimary
	StateVerifiedCustom
	StateDenied
	// StateRefreshed is terminal for the refresh exchange only.
	StateRefreshed
)

func (s GateState) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StateSessionPresent:
		return "session_present"
	case StateAttempting:
		return "attempting"
	case StateVerifiedPrimary:
		return "verified_primary"
	case StateVerifiedCustom:
		return "verified_custom"
	case StateDenied:
		return "denied"
	case StateRefreshed:
		return "refreshed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s GateState) Terminal() bool {
	switch s {
	case StateSessionPresent, StateVerifiedPrimary, StateVerifiedCustom, StateDenied, StateRefreshed:
		return true
	default:
		return false
	}
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	State    GateState
	Allowed  bool
	Identity *IdentityRecord
	Minimal  *MinimalIdentity
	Source   Source
	Reason   DenyReason
}

func denied(reason DenyReason) Decision {
	return Decision{State: StateDenied, Reason: reason}
}

func verifiedState(source Source) GateState {
	if source == SourcePrimary {
		return StateVerifiedPrimary
	}
	return StateVerifiedCustom
}

// CredentialVerifier verifies a raw credential, returning claims or a
// *VerificationError.
type CredentialVerifier interface {
	Verify(raw string) (*Claims, error)
}

// GateRequest carries what the gate needs from the transport.
type GateRequest struct {
	// Header is the raw Authorization header value, possibly empty.
	Header string
	// Attached is an identity an upstream collaborator already resolved.
	Attached *IdentityRecord
}

// PolicyGate turns a request into a single allow/deny decision.
type PolicyGate struct {
	verifier CredentialVerifier
	resolver *IdentityResolver
	logger   Logger
}

func NewPolicyGate(verifier CredentialVerifier, resolver *IdentityResolver) *PolicyGate {
	return &PolicyGate{
		verifier: verifier,
		resolver: resolver,
		logger:   defaultLogger(),
	}
}

func (g *PolicyGate) WithLogger(l Logger) *PolicyGate {
	g.logger = normalizeLogger(l)
	return g
}

// Evaluate runs the gate. Expected failures come back as a denied
// Decision with a nil error; only identity store failures return an error.
func (g *PolicyGate) Evaluate(ctx context.Context, req GateRequest) (Decision, error) {
	if req.Attached != nil {
		return Decision{
			State:    StateSessionPresent,
			Allowed:  true,
			Identity: req.Attached,
			Source:   req.Attached.Source,
		}, nil
	}

	raw, ok := ExtractBearer(req.Header)
	if !ok {
		return denied(extractionReason(req.Header)), nil
	}

	if g.verifier == nil || g.resolver == nil {
		return denied(ReasonSecretMissing), nil
	}

	claims, err := g.verifier.Verify(raw)
	if err != nil {
		kind, _ := VerificationKindOf(err)
		return denied(reasonFromVerification(kind)), nil
	}

	record, err := g.resolver.Resolve(ctx, claims)
	if err != nil {
		if IsIdentityNotFound(err) {
			g.logger.Debug("verified credential has no matching identity", "subject", claims.SubjectID())
			return denied(ReasonIdentityNotFound), nil
		}
		return Decision{State: StateDenied}, err
	}

	return Decision{
		State:    verifiedState(record.Source),
		Allowed:  true,
		Identity: record,
		Source:   record.Source,
	}, nil
}
