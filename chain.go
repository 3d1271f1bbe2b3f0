package auth

// Chain is the resolution chain built from one Config: verifiers,
// resolver, gate, refresh exchange, the default policies and the issuer
// that shares their secrets.
type Chain struct {
	Config          Config
	Verifier        *TokenVerifier
	RefreshVerifier *TokenVerifier
	Resolver        *IdentityResolver
	Gate            *PolicyGate
	Exchange        *RefreshExchange
	Registry        *PolicyRegistry
	Issuer          *TokenIssuer
	Guard           *RouteGuard
}

// ChainOption customizes NewChain.
type ChainOption func(*chainOptions)

type chainOptions struct {
	logger   Logger
	observer DecisionObserver
	verifier []VerifierOption
}

func WithChainLogger(l Logger) ChainOption {
	return func(o *chainOptions) {
		o.logger = l
	}
}

func WithChainObserver(obs DecisionObserver) ChainOption {
	return func(o *chainOptions) {
		o.observer = obs
	}
}

// WithChainVerifierOptions applies opts to both verifiers.
func WithChainVerifierOptions(opts ...VerifierOption) ChainOption {
	return func(o *chainOptions) {
		o.verifier = append(o.verifier, opts...)
	}
}

// NewChain wires primary then custom as the resolution order and registers
// the authenticated and refresh-token policies.
func NewChain(cfg Config, primary, custom IdentityStore, opts ...ChainOption) *Chain {
	o := &chainOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	logger := normalizeLogger(o.logger)
	observer := normalizeDecisionObserver(o.observer)

	verifierOpts := append([]VerifierOption{WithVerifierLogger(logger)}, o.verifier...)
	verifier := NewAccessVerifier(cfg, verifierOpts...)
	refreshVerifier := NewRefreshVerifier(cfg, verifierOpts...)

	timeout := cfg.GetLookupTimeout()
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	resolver := NewStoreResolver(primary, custom).
		WithLookupTimeout(timeout).
		WithLogger(logger).
		WithObserver(observer)

	gate := NewPolicyGate(verifier, resolver).WithLogger(logger)
	exchange := NewRefreshExchange(refreshVerifier, gate).WithLogger(logger)
	registry := NewPolicyRegistry(
		AuthenticatedPolicy(gate),
		RefreshTokenPolicy(exchange),
	)

	return &Chain{
		Config:          cfg,
		Verifier:        verifier,
		RefreshVerifier: refreshVerifier,
		Resolver:        resolver,
		Gate:            gate,
		Exchange:        exchange,
		Registry:        registry,
		Issuer:          NewTokenIssuer(cfg).WithLogger(logger),
		Guard:           NewRouteGuard(registry, cfg).WithLogger(logger).WithObserver(observer),
	}
}
