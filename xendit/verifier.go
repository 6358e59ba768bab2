package xendit

// Verifier checks the shared-secret callback token Xendit sends with
// webhook notifications. Signing is optional on the provider side, so an
// empty configured token disables verification entirely.
type Verifier struct {
	token string
}

// NewVerifier creates a verifier for the configured callback token
func NewVerifier(token string) *Verifier {
	return &Verifier{token: token}
}

// Verify reports whether the presented token is acceptable: always true
// when no token is configured, otherwise true only on exact string
// equality. The positive "is it valid" polarity is used consistently
// throughout the package.
func (v *Verifier) Verify(presented string) bool {
	if v.token == "" {
		return true
	}
	return presented == v.token
}

// Enabled reports whether a callback token is configured
func (v *Verifier) Enabled() bool {
	return v.token != ""
}
