package crypto

import (
	"errors"

	srp "github.com/kong/go-srp"
)

// srpGroupBits selects the RFC 5054 prime group shared with Uhost.
const srpGroupBits = 2048

// ErrNoSession is returned when a challenge arrives before the
// authentication was started.
var ErrNoSession = errors.New("crypto: srp session not started")

// SRPClient runs the client side of an SRP-6a exchange. The username is the
// hex-decoded utim name and the password is the provisioned master key.
//
// The exchange maps onto the protocol as: StartAuthentication feeds the
// hello, ProcessChallenge answers the TRY challenge, VerifySession checks the
// INIT proof. The session key K = SHA-256(S) is 32 bytes and is used directly
// as the AES-256 channel key; no further derivation is applied.
type SRPClient struct {
	username []byte
	password []byte
	secret   []byte

	session       *srp.SRPClient
	key           []byte
	authenticated bool
}

// NewSRPClient builds a client for one authentication run. The ephemeral
// client secret is fixed here so that the public value A stays stable across
// the hello and the challenge.
func NewSRPClient(username, password []byte) *SRPClient {
	return &SRPClient{
		username: username,
		password: password,
		secret:   srp.GenKey(),
	}
}

// StartAuthentication returns the username and the client public value A for
// the hello message.
func (c *SRPClient) StartAuthentication() ([]byte, []byte) {
	session := srp.NewClient(srp.GetParams(srpGroupBits), nil, c.username, c.password, c.secret)
	return c.username, session.ComputeA()
}

// ProcessChallenge consumes the server salt and public value B and returns
// the client proof M, or nil when the challenge is unusable. The underlying
// library wants the salt at construction time while the wire only delivers it
// with the challenge, so the session is rebuilt here from the retained
// secret; A depends only on the secret and is unchanged.
func (c *SRPClient) ProcessChallenge(salt, b []byte) []byte {
	if len(salt) == 0 || len(b) == 0 {
		return nil
	}
	session := srp.NewClient(srp.GetParams(srpGroupBits), salt, c.username, c.password, c.secret)
	session.ComputeA()
	session.SetB(b)
	c.session = session
	c.key = session.ComputeK()
	return session.ComputeM1()
}

// VerifySession checks the server proof HAMK. On success the session key
// becomes available.
func (c *SRPClient) VerifySession(proof []byte) error {
	if c.session == nil {
		return ErrNoSession
	}
	if err := c.session.CheckM2(proof); err != nil {
		c.authenticated = false
		return err
	}
	c.authenticated = true
	return nil
}

// SessionKey returns the shared session key, or nil until VerifySession has
// succeeded.
func (c *SRPClient) SessionKey() []byte {
	if !c.authenticated {
		return nil
	}
	return c.key
}

// IsAuthenticated reports whether the server proof has been verified.
func (c *SRPClient) IsAuthenticated() bool {
	return c.authenticated
}
