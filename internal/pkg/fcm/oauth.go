package fcm

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	messagingScope = "https://www.googleapis.com/auth/firebase.messaging"
	grantType      = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	accessTokenCacheKey = "fcm:access_token"
	// keep the cached token comfortably inside its lifetime
	cacheTTLSlack = 5 * time.Minute
)

// TokenSource exchanges a signed JWT bearer assertion for a short-lived
// OAuth access token. The token is shared across a whole dispatch and,
// when Redis is available, across dispatches until it nears expiry.
type TokenSource struct {
	account    *ServiceAccount
	signingKey *rsa.PrivateKey
	httpClient *http.Client
	cache      *redis.Client // optional
}

// NewTokenSource creates a token source from a service-account credential.
// cache may be nil; the source then exchanges a fresh token per call.
func NewTokenSource(account *ServiceAccount, cache *redis.Client) (*TokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}

	return &TokenSource{
		account:    account,
		signingKey: key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache,
	}, nil
}

type assertionClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a valid access token, from cache when possible
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	if ts.cache != nil {
		cached, err := ts.cache.Get(ctx, accessTokenCacheKey).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && err != redis.Nil {
			log.Warn().Err(err).Msg("FCM token cache read failed, exchanging fresh token")
		}
	}

	token, expiresIn, err := ts.exchange(ctx)
	if err != nil {
		return "", err
	}

	if ts.cache != nil {
		ttl := time.Duration(expiresIn)*time.Second - cacheTTLSlack
		if ttl > 0 {
			if err := ts.cache.Set(ctx, accessTokenCacheKey, token, ttl).Err(); err != nil {
				log.Warn().Err(err).Msg("FCM token cache write failed")
			}
		}
	}

	return token, nil
}

func (ts *TokenSource) exchange(ctx context.Context) (string, int64, error) {
	now := time.Now()
	claims := assertionClaims{
		Scope: messagingScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.account.ClientEmail,
			Audience:  jwt.ClaimStrings{ts.account.TokenURI},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign oauth assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.account.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("oauth token request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("oauth token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("oauth token request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("oauth token error: status %d: %s", resp.StatusCode, string(body))
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, fmt.Errorf("failed to parse oauth response: %w", err)
	}
	if out.AccessToken == "" {
		return "", 0, fmt.Errorf("oauth response contained no access token")
	}

	return out.AccessToken, out.ExpiresIn, nil
}
