package utils

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

// LoadRSAPrivateKey accepts either an inline PEM block or a path to a PEM file.
// Inline keys coming from env vars often carry literal "\n" sequences.
func LoadRSAPrivateKey(inlinePEM, path string) (*rsa.PrivateKey, error) {
	var raw []byte
	switch {
	case inlinePEM != "":
		raw = []byte(strings.ReplaceAll(inlinePEM, `\n`, "\n"))
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("no private key configured")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// GenerateSubscriberToken creates an RS256 token scoped to a network subscriber.
// The token expires after the specified duration.
func GenerateSubscriberToken(subscriberID string, key *rsa.PrivateKey, issuedAt time.Time, duration time.Duration) (string, error) {
	if key == nil {
		return "", errors.New("signing key is nil")
	}
	claims := jwt.MapClaims{
		"subscriber_id": subscriberID,
		"iat":           issuedAt.Unix(),
		"exp":           issuedAt.Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}
