// Package auth decides whether an HTTP request carries a valid identity.
//
// Resolution chain:
//   - ExtractBearer pulls the credential from the Authorization header.
//   - TokenVerifier checks it against a secret injected at construction;
//     failures are typed (VerificationKind) and an empty secret fails closed.
//   - IdentityResolver tries its named strategies in order, the primary
//     store and then the custom store by default, and stops at the first hit.
//   - PolicyGate folds the above into one Decision. An identity an upstream
//     session layer attached with AttachIdentity short-circuits verification.
//
// Refresh:
//   - RefreshExchange accepts a refresh credential signed with its own
//     secret and yields a MinimalIdentity, falling back to the gate when the
//     refresh credential is missing or does not verify.
//
// Routes declare named policies from a PolicyRegistry through
// RouteGuard.Protect. Denials surface as ErrUnauthorized, which the
// middleware/unauthorized package renders as the uniform 401 envelope.
package auth
