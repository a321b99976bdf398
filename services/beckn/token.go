package beckn

import (
	"context"
	"crypto/rsa"
	"sync"
	"time"

	"villagestay/utils"
)

const (
	tokenValidity = time.Hour
	tokenRefresh  = 5 * time.Minute
)

// TokenSource hands out bearer tokens for gateway calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenProvider signs a subscriber token and reuses it until it is close to
// expiring.
type TokenProvider struct {
	subscriberID string
	key          *rsa.PrivateKey
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenProvider(subscriberID string, key *rsa.PrivateKey) *TokenProvider {
	return &TokenProvider{subscriberID: subscriberID, key: key, now: time.Now}
}

func (p *TokenProvider) Token(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.token != "" && now.Add(tokenRefresh).Before(p.expiresAt) {
		return p.token, nil
	}

	token, err := utils.GenerateSubscriberToken(p.subscriberID, p.key, now, tokenValidity)
	if err != nil {
		return "", err
	}
	p.token = token
	p.expiresAt = now.Add(tokenValidity)
	return token, nil
}
