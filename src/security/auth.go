package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Identity is the verified caller of a request. The core never sees
// credentials, only this pair extracted from a valid token.
type Identity struct {
	UID   string
	Email string
}

// AuthService verifies and issues the HS256 bearer tokens the external
// identity flow hands to clients.
type AuthService struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

func NewAuthService(secret string, tokenExpiry time.Duration) *AuthService {
	return &AuthService{
		JWTSecret:   secret,
		TokenExpiry: tokenExpiry,
	}
}

// GenerateToken issues a token for a verified user, carrying uid and email.
func (a *AuthService) GenerateToken(uid, email string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   uid,
		"email": email,
		"exp":   time.Now().Add(a.TokenExpiry).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

// ValidateToken verifies a bearer token and returns the caller identity.
func (a *AuthService) ValidateToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("invalid token: 'sub' claim missing or not a string")
	}
	email, _ := claims["email"].(string)

	return Identity{UID: sub, Email: email}, nil
}

// HashLedgerPassword hashes a shared-ledger join password. Empty passwords
// stay empty: an empty stored password means the ledger requires none.
func HashLedgerPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckLedgerPassword compares a supplied password against the stored hash.
func CheckLedgerPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
