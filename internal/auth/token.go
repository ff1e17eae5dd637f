package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/campusconnect/campus-chat/internal/database"
	"github.com/campusconnect/campus-chat/internal/types"
	"github.com/golang-jwt/jwt"
)

const (
	userIdClaim = "user-id"
	expClaim    = "exp"
)

// DefaultTokenExpiration is how long an issued bearer token stays valid.
const DefaultTokenExpiration = time.Hour * 24

type Reason string

const (
	ReasonMissingToken   Reason = "missing_token"
	ReasonMalformed      Reason = "malformed"
	ReasonExpired        Reason = "expired"
	ReasonUnknownSubject Reason = "unknown_subject"
)

// AuthError is a terminal authentication failure. The embedded cause is for
// server-side logs only and must never reach a client.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %s", e.Reason, e.Err.Error())
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TokenAuthenticator validates bearer tokens and resolves them to users. It
// is the single authentication gate for both the REST surface and the
// websocket handshake.
type TokenAuthenticator struct {
	signingKey []byte
	db         database.ChatRepository
}

func NewTokenAuthenticator(signingKey []byte, db database.ChatRepository) *TokenAuthenticator {
	return &TokenAuthenticator{
		signingKey: signingKey,
		db:         db,
	}
}

// Authenticate parses and verifies tokenString and resolves its subject to a
// user. Every failure is an *AuthError; callers must re-authenticate with a
// fresh token, there is no in-protocol retry.
func (a *TokenAuthenticator) Authenticate(tokenString string) (types.User, error) {
	if tokenString == "" {
		return types.User{}, &AuthError{Reason: ReasonMissingToken}
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return types.User{}, &AuthError{Reason: ReasonExpired, Err: err}
		}
		return types.User{}, &AuthError{Reason: ReasonMalformed, Err: err}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return types.User{}, &AuthError{Reason: ReasonMalformed, Err: errors.New("invalid token claims")}
	}

	// JSON numbers decode as float64.
	userId, ok := claims[userIdClaim].(float64)
	if !ok {
		return types.User{}, &AuthError{Reason: ReasonMalformed, Err: errors.New("missing user id claim")}
	}

	acct, err := a.db.GetAccountById(int(userId))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.User{}, &AuthError{Reason: ReasonUnknownSubject, Err: err}
		}
		return types.User{}, fmt.Errorf("resolve subject: %w", err)
	}

	return types.User{
		Id:        acct.Id,
		Username:  acct.Username,
		Email:     acct.EmailAddress,
		CreatedAt: acct.CreatedAt,
		UpdatedAt: acct.UpdatedAt,
	}, nil
}

// Issue creates a signed bearer token for user, valid for exp.
func (a *TokenAuthenticator) Issue(user types.User, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: user.Id,
		expClaim:    time.Now().Add(exp).Unix(),
	})

	return token.SignedString(a.signingKey)
}
