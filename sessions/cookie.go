package sessions

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidCookie covers malformed, tampered and foreign-signed cookie values.
var ErrInvalidCookie = errors.New("invalid session cookie")

const cookieIssuer = "acronym-restful"

// CookieCodec signs session ids into the session cookie so that a forged
// cookie is rejected before the store is consulted. The cookie value is an
// HS256 JWT whose jti claim is the session id.
type CookieCodec struct {
	name   string
	secret []byte
	secure bool
	maxAge time.Duration
}

func NewCookieCodec(name string, secret []byte, secure bool, maxAge time.Duration) *CookieCodec {
	return &CookieCodec{name: name, secret: secret, secure: secure, maxAge: maxAge}
}

// Name is the cookie name.
func (c *CookieCodec) Name() string {
	return c.name
}

func (c *CookieCodec) Encode(sessionID string) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       sessionID,
		Issuer:   cookieIssuer,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the session id. Expiry is the
// store's business, not the cookie's.
func (c *CookieCodec) Decode(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCookie
	}
	if claims.Issuer != cookieIssuer || claims.ID == "" {
		return "", ErrInvalidCookie
	}
	return claims.ID, nil
}

// Read returns the trimmed cookie value when present.
func (c *CookieCodec) Read(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie == nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

// Write sets the signed session cookie.
func (c *CookieCodec) Write(w http.ResponseWriter, sessionID string) error {
	value, err := c.Encode(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
