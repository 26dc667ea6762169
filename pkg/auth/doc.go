// Package auth implements the authentication core: synthetic admin token
// issuance, the bearer token decoder dispatcher, admin credential validation,
// claim-to-role normalization, and the OAuth2 provider registry.
//
// The dispatcher is the conflict-resolution point between the two
// authentication modes. A bearer token carrying the reserved admin prefix is
// decoded in-memory to the fixed admin identity; any other token is handed to
// the external OIDC verifier. Neither path ever inspects the other's tokens,
// which is what lets both modes coexist on the same endpoint in hybrid mode.
package auth
