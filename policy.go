package auth

import (
	"context"
	"sort"
)

const (
	PolicyAuthenticated = "authenticated"
	PolicyRefreshToken  = "refresh-token"
)

// PolicyRequest is the transport independent input of a named policy.
type PolicyRequest struct {
	Header       string
	RefreshToken string
	Attached     *IdentityRecord
	Minimal      *MinimalIdentity
}

// Policy is a named predicate gating access to a route.
type Policy interface {
	Name() string
	Evaluate(ctx context.Context, req PolicyRequest) (Decision, error)
}

type policyFunc struct {
	name string
	fn   func(ctx context.Context, req PolicyRequest) (Decision, error)
}

// NewPolicy adapts fn into a Policy called name.
func NewPolicy(name string, fn func(ctx context.Context, req PolicyRequest) (Decision, error)) Policy {
	return policyFunc{name: name, fn: fn}
}

func (p policyFunc) Name() string { return p.name }

func (p policyFunc) Evaluate(ctx context.Context, req PolicyRequest) (Decision, error) {
	return p.fn(ctx, req)
}

// AuthenticatedPolicy requires a fully verified identity.
func AuthenticatedPolicy(gate *PolicyGate) Policy {
	return NewPolicy(PolicyAuthenticated, func(ctx context.Context, req PolicyRequest) (Decision, error) {
		decision, err := gate.Evaluate(ctx, GateRequest{
			Header:   req.Header,
			Attached: req.Attached,
		})
		if err != nil {
			return decision, err
		}
		if !decision.Allowed && req.Minimal != nil && decision.Reason == ReasonMissingHeader {
			decision.Reason = ReasonRefreshOnly
		}
		return decision, nil
	})
}

// BodyReader is implemented by policies that need the refresh_token body
// field; the route guard only parses request bodies for those.
type BodyReader interface {
	ReadsRefreshToken() bool
}

type refreshPolicy struct {
	policyFunc
}

func (refreshPolicy) ReadsRefreshToken() bool { return true }

// RefreshTokenPolicy gates the refresh route with the refresh exchange.
func RefreshTokenPolicy(exchange *RefreshExchange) Policy {
	return refreshPolicy{policyFunc{name: PolicyRefreshToken, fn: func(ctx context.Context, req PolicyRequest) (Decision, error) {
		if req.Attached != nil {
			return Decision{
				State:    StateSessionPresent,
				Allowed:  true,
				Identity: req.Attached,
				Source:   req.Attached.Source,
			}, nil
		}
		return exchange.Exchange(ctx, req.RefreshToken, req.Header)
	}}}
}

// PolicyRegistry holds the named policies routes can declare.
type PolicyRegistry struct {
	policies map[string]Policy
}

func NewPolicyRegistry(policies ...Policy) *PolicyRegistry {
	r := &PolicyRegistry{policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds p, names must be unique.
func (r *PolicyRegistry) Register(p Policy) error {
	if p == nil || p.Name() == "" {
		return ErrPolicyUnnamed
	}
	if _, exists := r.policies[p.Name()]; exists {
		return ErrPolicyExists.Clone().WithMetadata(map[string]any{"policy": p.Name()})
	}
	r.policies[p.Name()] = p
	return nil
}

func (r *PolicyRegistry) Lookup(name string) (Policy, bool) {
	p, ok := r.policies[name]
	return p, ok
}

// Resolve returns the policies for names in the given order and fails on
// the first unknown name.
func (r *PolicyRegistry) Resolve(names ...string) ([]Policy, error) {
	out := make([]Policy, 0, len(names))
	for _, name := range names {
		p, ok := r.policies[name]
		if !ok {
			return nil, ErrUnknownPolicy.Clone().WithMetadata(map[string]any{"policy": name})
		}
		out = append(out, p)
	}
	return out, nil
}

// Names lists registered policies, sorted.
func (r *PolicyRegistry) Names() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
