package auth

import (
	"context"
	"time"
)

// DefaultLookupTimeout bounds a single identity store lookup.
const DefaultLookupTimeout = 5 * time.Second

// ResolveStrategy maps verified claims to an identity. A miss is reported
// as (nil, nil), infrastructure failures as a non nil error.
type ResolveStrategy interface {
	Name() string
	Resolve(ctx context.Context, claims *Claims) (*IdentityRecord, error)
}

// StoreStrategy resolves claims against an IdentityStore and tags hits
// with a fixed Source.
type StoreStrategy struct {
	name   string
	source Source
	store  IdentityStore
}

// NewStoreStrategy returns a strategy named after source.
func NewStoreStrategy(source Source, store IdentityStore) *StoreStrategy {
	return &StoreStrategy{
		name:   string(source),
		source: source,
		store:  store,
	}
}

func (s *StoreStrategy) Name() string {
	return s.name
}

func (s *StoreStrategy) Resolve(ctx context.Context, claims *Claims) (*IdentityRecord, error) {
	id := claims.SubjectID()
	identity, err := s.store.FindByID(ctx, id)
	if err != nil {
		if IsIdentityNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if identity == nil {
		return nil, nil
	}
	return NewIdentityRecord(id, s.source, identity), nil
}

// IdentityResolver tries its strategies one at a time in declared order
// and stops at the first hit.
type IdentityResolver struct {
	strategies    []ResolveStrategy
	lookupTimeout time.Duration
	observer      DecisionObserver
	logger        Logger
}

// NewIdentityResolver filters nil strategies and keeps the given order.
func NewIdentityResolver(strategies ...ResolveStrategy) *IdentityResolver {
	filtered := make([]ResolveStrategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &IdentityResolver{
		strategies:    filtered,
		lookupTimeout: DefaultLookupTimeout,
		observer:      noopDecisionObserver{},
		logger:        defaultLogger(),
	}
}

// NewStoreResolver composes the primary store ahead of the custom store.
func NewStoreResolver(primary, custom IdentityStore) *IdentityResolver {
	var strategies []ResolveStrategy
	if primary != nil {
		strategies = append(strategies, NewStoreStrategy(SourcePrimary, primary))
	}
	if custom != nil {
		strategies = append(strategies, NewStoreStrategy(SourceCustom, custom))
	}
	return NewIdentityResolver(strategies...)
}

// WithLookupTimeout sets the per lookup bound, zero disables it.
func (r *IdentityResolver) WithLookupTimeout(d time.Duration) *IdentityResolver {
	r.lookupTimeout = d
	return r
}

func (r *IdentityResolver) WithLogger(l Logger) *IdentityResolver {
	r.logger = normalizeLogger(l)
	return r
}

func (r *IdentityResolver) WithObserver(o DecisionObserver) *IdentityResolver {
	r.observer = normalizeDecisionObserver(o)
	return r
}

// Strategies returns the strategy names in resolution order.
func (r *IdentityResolver) Strategies() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the first identity found for claims. It returns
// ErrIdentityNotFound when every strategy misses and a store lookup error
// when a strategy fails; the remaining strategies are not tried then.
func (r *IdentityResolver) Resolve(ctx context.Context, claims *Claims) (*IdentityRecord, error) {
	if claims == nil || claims.SubjectID() == 0 {
		return nil, ErrIdentityNotFound
	}

	for _, strategy := range r.strategies {
		if err := ctx.Err(); err != nil {
			return nil, storeLookupError(err, strategy.Name())
		}

		record, err := r.lookup(ctx, strategy, claims)
		if err != nil {
			r.logger.Error("identity lookup failed", "strategy", strategy.Name(), "subject", claims.SubjectID(), "error", err)
			return nil, storeLookupError(err, strategy.Name())
		}
		if record != nil {
			return record, nil
		}
	}

	return nil, ErrIdentityNotFound
}

func (r *IdentityResolver) lookup(ctx context.Context, strategy ResolveStrategy, claims *Claims) (*IdentityRecord, error) {
	if r.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.lookupTimeout)
		defer cancel()
	}

	started := time.Now()
	record, err := strategy.Resolve(ctx, claims)

	outcome := "hit"
	switch {
	case err != nil:
		outcome = "error"
	case record == nil:
		outcome = "miss"
	}
	r.observer.ObserveLookup(strategy.Name(), outcome, time.Since(started))

	return record, err
}
