package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

// AuthService issues and checks the HS256 tokens presented on the websocket
// handshake and the REST api. With no secret configured every claimed
// identity is trusted, which is how local development runs.
type AuthService interface {
	Enabled() bool
	IssueToken(id auth.Identity) (string, error)
	VerifyToken(tokenString string) (auth.Identity, error)
	// Authenticate resolves the identity of a caller that claims to be claimed
	// and presents tokenString.
	Authenticate(tokenString string, claimed auth.Identity) (auth.Identity, error)
}

type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	log       *logger.Logger
	secret    []byte
	accessTTL time.Duration
}

func NewAuthService(log *logger.Logger, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &authService{
		log:       log.With("service", "AuthService"),
		secret:    []byte(strings.TrimSpace(jwtSecretKey)),
		accessTTL: accessTTL,
	}
}

func (as *authService) Enabled() bool { return len(as.secret) > 0 }

func (as *authService) IssueToken(id auth.Identity) (string, error) {
	if !as.Enabled() {
		return "", fmt.Errorf("token signing disabled: no JWT secret configured")
	}
	if !id.Valid() {
		return "", fmt.Errorf("invalid identity %q", id.Key())
	}
	now := time.Now()
	claims := JWTClaims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(id.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.secret)
}

func (as *authService) VerifyToken(tokenString string) (auth.Identity, error) {
	const op = "auth.VerifyToken"
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return auth.Identity{}, errs.Authorization(op, "missing token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return auth.Identity{}, errs.New(errs.KindAuthorization, op, "invalid token", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return auth.Identity{}, errs.Authorization(op, "invalid or expired token")
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return auth.Identity{}, errs.New(errs.KindAuthorization, op, "invalid subject in token", err)
	}
	role, ok := auth.ParseRole(claims.Role)
	if !ok {
		return auth.Identity{}, errs.Authorization(op, "invalid role in token")
	}
	return auth.NewIdentity(role, userID), nil
}

func (as *authService) Authenticate(tokenString string, claimed auth.Identity) (auth.Identity, error) {
	if !as.Enabled() {
		if !claimed.Valid() {
			return auth.Identity{}, errs.Authorization("auth.Authenticate", "missing identity")
		}
		return claimed, nil
	}
	id, err := as.VerifyToken(tokenString)
	if err != nil {
		return auth.Identity{}, err
	}
	if claimed.Valid() && claimed != id {
		as.log.Warn("token identity mismatch", "claimed", claimed.Key(), "verified", id.Key())
		return auth.Identity{}, errs.Authorization("auth.Authenticate", "token does not match userId and role")
	}
	return id, nil
}
