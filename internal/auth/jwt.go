package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Validator verifies caller tokens for the REST API and the websocket
// handshake. RS256 with a platform public key in production, HS256 with a
// shared secret in development and tests.
type Validator struct {
	pub    *rsa.PublicKey
	secret []byte
}

func NewValidator(alg, publicKeyPath, hsSecret string) (*Validator, error) {
	switch strings.ToUpper(alg) {
	case "RS256":
		pub, err := loadRSAPublicKey(publicKeyPath)
		if err != nil {
			return nil, err
		}
		return &Validator{pub: pub}, nil
	case "HS256":
		if hsSecret == "" {
			return nil, errors.New("hs secret is empty")
		}
		return &Validator{secret: []byte(hsSecret)}, nil
	}
	return nil, errors.New("unsupported jwt alg")
}

// Validate parses tokenStr and returns the caller's user id from the sub
// (or user_id) claim.
func (v *Validator) Validate(tokenStr string) (string, error) {
	var tok *jwt.Token
	var err error
	if v.pub != nil {
		tok, err = jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return v.pub, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
	} else {
		tok, err = jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return v.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
	}
	if err != nil {
		return "", err
	}
	if claims, ok := tok.Claims.(jwt.MapClaims); ok && tok.Valid {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub, nil
		}
		if userID, ok := claims["user_id"].(string); ok && userID != "" {
			return userID, nil
		}
	}
	return "", errors.New("invalid token")
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("failed to decode public key")
	}
	pubIfc, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubIfc.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an rsa public key")
	}
	return pub, nil
}
