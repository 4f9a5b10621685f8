// Package assertion mints the signed identity tokens attached to forwarded requests.
package assertion

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"jwt-proxy-go/internal/config"
)

// HeaderName is the request header that carries the token upstream.
const HeaderName = "X-My-Jwt"

// PayloadClaim is the private claim holding the JSON-encoded user/date pair.
const PayloadClaim = "payload"

// ErrSigning is returned when a token cannot be built or signed.
var ErrSigning = errors.New("assertion signing failed")

// Payload is the content of the payload claim.
type Payload struct {
	User string `json:"user"`
	Date string `json:"date"`
}

// Issuer signs per-request identity assertions. It is safe for concurrent use;
// all fields are fixed at construction.
type Issuer struct {
	alg    jwa.SignatureAlgorithm
	issuer string
	key    []byte
	now    func() time.Time
	newID  func() string
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithClock overrides the issued-at time source. The clock is read on every Issue call.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithIDGenerator overrides the jti source.
func WithIDGenerator(gen func() string) Option {
	return func(i *Issuer) { i.newID = gen }
}

// New creates an Issuer from explicit signing material.
func New(alg, issuer string, key []byte, opts ...Option) (*Issuer, error) {
	var sa jwa.SignatureAlgorithm
	if err := sa.Accept(alg); err != nil {
		return nil, fmt.Errorf("%w: unknown algorithm %q: %v", ErrSigning, alg, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty signing key", ErrSigning)
	}

	i := &Issuer{
		alg:    sa,
		issuer: issuer,
		key:    key,
		now:    time.Now,
		newID:  newTokenID,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// NewIssuer creates an Issuer from the [jwt] config section.
func NewIssuer(cfg *config.Config) (*Issuer, error) {
	key, err := cfg.JWT.Secret()
	if err != nil {
		return nil, err
	}
	return New(cfg.JWT.Algorithm, cfg.JWT.Issuer, key)
}

// Issue returns a compact-serialized token asserting user on the calendar date of date.
// Each call carries a fresh iat and jti.
func (i *Issuer) Issue(user string, date time.Time) ([]byte, error) {
	claim, err := json.Marshal(Payload{User: user, Date: date.Format(time.DateOnly)})
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", ErrSigning, err)
	}

	tok, err := jwt.NewBuilder().
		Issuer(i.issuer).
		IssuedAt(i.now()).
		JwtID(i.newID()).
		Claim(PayloadClaim, string(claim)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("%w: build token: %v", ErrSigning, err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(i.alg, i.key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// Algorithm returns the configured signing algorithm.
func (i *Issuer) Algorithm() jwa.SignatureAlgorithm {
	return i.alg
}

// newTokenID returns 128 random bits, hex encoded.
func newTokenID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
