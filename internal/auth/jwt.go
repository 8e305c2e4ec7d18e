package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"quizroom/internal/apperr"
	"quizroom/internal/logger"
)

const (
	DefaultTokenTTL    = 24 * time.Hour
	DefaultWSTicketTTL = 60 * time.Second

	usageWebSocket = "websocket_auth"
)

// Claims identifies a player by username in the subject.
type Claims struct {
	jwt.RegisteredClaims
	Usage string `json:"usage,omitempty"`
}

// ErrNoCredentials means the request carried no token or ticket at all.
var ErrNoCredentials = fmt.Errorf("no credentials: %w", apperr.ErrUnauthenticated)

// Resolver turns credentials into a user id.
type Resolver interface {
	ResolveToken(token string) (string, error)
	ResolveTicket(ticket string) (string, error)
}

type JWTService struct {
	secretKey      []byte
	tokenTTL       time.Duration
	wsTicketExpiry time.Duration
	now            func() time.Time
}

func NewJWTService(secretKey string, tokenTTL, wsTicketTTL time.Duration) (*JWTService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("JWT secret key is required: %w", apperr.ErrConfiguration)
	}
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if wsTicketTTL <= 0 {
		wsTicketTTL = DefaultWSTicketTTL
	}
	return &JWTService{
		secretKey:      []byte(secretKey),
		tokenTTL:       tokenTTL,
		wsTicketExpiry: wsTicketTTL,
		now:            time.Now,
	}, nil
}

// GenerateToken issues a bearer token for username.
func (s *JWTService) GenerateToken(username string) (string, error) {
	return s.sign(username, "", s.tokenTTL)
}

// GenerateWSTicket issues a short-lived token usable only to open a WebSocket.
func (s *JWTService) GenerateWSTicket(username string) (string, error) {
	return s.sign(username, usageWebSocket, s.wsTicketExpiry)
}

func (s *JWTService) sign(username, usage string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", fmt.Errorf("empty username: %w", apperr.ErrInvalidInput)
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Usage: usage,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		logger.Log.Errorf("[JWT] signing token for %s: %v", username, err)
		return "", err
	}
	return signed, nil
}

// ParseToken validates a bearer token. WebSocket tickets are rejected here.
func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != "" {
		return nil, fmt.Errorf("token usage %q: %w", claims.Usage, apperr.ErrUnauthenticated)
	}
	return claims, nil
}

func (s *JWTService) ParseWSTicket(ticketString string) (*Claims, error) {
	claims, err := s.parse(ticketString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != usageWebSocket {
		return nil, fmt.Errorf("invalid ticket usage: %w", apperr.ErrUnauthenticated)
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("token is expired: %w", apperr.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("invalid token: %v: %w", err, apperr.ErrUnauthenticated)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token: %w", apperr.ErrUnauthenticated)
	}
	return claims, nil
}

func (s *JWTService) ResolveToken(token string) (string, error) {
	claims, err := s.ParseToken(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *JWTService) ResolveTicket(ticket string) (string, error) {
	claims, err := s.ParseWSTicket(ticket)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Identify resolves the caller of r from a ?ticket= or ?token= query
// parameter or the Authorization header, in that order. A request without
// credentials yields ErrNoCredentials.
func Identify(r *http.Request, res Resolver) (string, error) {
	if res == nil {
		return "", fmt.Errorf("no identity resolver: %w", apperr.ErrUnauthenticated)
	}
	q := r.URL.Query()
	if ticket := q.Get("ticket"); ticket != "" {
		return res.ResolveTicket(ticket)
	}
	if token := q.Get("token"); token != "" {
		return res.ResolveToken(token)
	}
	if token := BearerToken(r); token != "" {
		return res.ResolveToken(token)
	}
	return "", ErrNoCredentials
}
