package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the claims carried by a session token.
// Clients treat the token as opaque; the server uses the claims to find the session.
type Payload struct {
	// StandardClaims carries expiry, issue time, issuer and the session id (jti).
	jwt.StandardClaims

	// Username identifies the account the session belongs to.
	Username string `json:"username"`
}

// SessionID returns the session identifier stored in the jti claim.
func (p *Payload) SessionID() string {
	return p.Id
}
