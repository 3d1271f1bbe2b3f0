package auth

import (
	"context"
	"strings"
)

// RefreshExchange lets a client with an expired access credential obtain
// a new one by presenting a refresh credential. It is a best effort second
// chance: a refresh credential that is missing or does not verify falls
// back to standard verification of the Authorization header.
type RefreshExchange struct {
	verifier CredentialVerifier
	gate     *PolicyGate
	logger   Logger
}

// NewRefreshExchange wires the refresh verifier, built with its own secret,
// and the gate used as fallback. Either may be nil.
func NewRefreshExchange(verifier CredentialVerifier, gate *PolicyGate) *RefreshExchange {
	return &RefreshExchange{
		verifier: verifier,
		gate:     gate,
		logger:   defaultLogger(),
	}
}

func (x *RefreshExchange) WithLogger(l Logger) *RefreshExchange {
	x.logger = normalizeLogger(l)
	return x
}

// Exchange returns an allowed Decision carrying a MinimalIdentity when
// refreshToken verifies, otherwise the gate's decision for header.
func (x *RefreshExchange) Exchange(ctx context.Context, refreshToken, header string) (Decision, error) {
	if token := strings.TrimSpace(refreshToken); token != "" && x.verifier != nil {
		claims, err := x.verifier.Verify(token)
		if err == nil {
			return Decision{
				State:   StateRefreshed,
				Allowed: true,
				Minimal: &MinimalIdentity{ID: claims.SubjectID()},
				Source:  SourceRefresh,
			}, nil
		}
		kind, _ := VerificationKindOf(err)
		x.logger.Debug("refresh credential not usable, trying standard verification", "kind", string(kind))
	}

	if x.gate == nil {
		x.logger.Warn("refresh exchange denied", "reason", string(ReasonMissingHeader))
		return denied(ReasonMissingHeader), nil
	}

	decision, err := x.gate.Evaluate(ctx, GateRequest{Header: header})
	if err != nil {
		return decision, err
	}
	if !decision.Allowed {
		x.logger.Warn("refresh exchange denied", "reason", string(decision.Reason))
	}
	return decision, nil
}
