// Package rtc mints room join tokens for the media server. Tokens follow the
// LiveKit access token layout: HS256, issuer = API key, subject = identity,
// and a "video" grant scoped to one room.
package rtc

import (
	"errors"
	"time"

	"chatcall-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// VideoGrant is the room permission block.
type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type Claims struct {
	jwt.RegisteredClaims

	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video"`
}

type Issuer struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	url       string
	clock     func() time.Time
}

func NewIssuer(cfg config.LiveKitConfig) (*Issuer, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("livekit api key and secret are required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Issuer{
		apiKey:    cfg.APIKey,
		apiSecret: []byte(cfg.APISecret),
		ttl:       ttl,
		url:       cfg.URL,
		clock:     time.Now,
	}, nil
}

// URL is the media server endpoint clients connect to.
func (i *Issuer) URL() string { return i.url }

// JoinToken signs a token that lets identity publish and subscribe in room.
func (i *Issuer) JoinToken(room, identity, name string) (string, error) {
	if room == "" || identity == "" {
		return "", errors.New("room and identity are required")
	}
	now := i.clock()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   identity,
			ID:        identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Name: name,
		Video: &VideoGrant{
			Room:         room,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.apiSecret)
}

// Parse validates a join token at now. The media server does this for real;
// it is used by tests and diagnostics.
func (i *Issuer) Parse(token string, now time.Time) (Claims, error) {
	var c Claims
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuer(i.apiKey),
		jwt.WithExpirationRequired(),
	).ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return i.apiSecret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if c.Video == nil || !c.Video.RoomJoin {
		return Claims{}, errors.New("token has no room grant")
	}
	return c, nil
}
