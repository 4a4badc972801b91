package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLength = 32

// Groups accepts either a JSON array or a comma-separated string, which is
// how identity providers variously encode group membership.
type Groups []string

func (g *Groups) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*g = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("groups: %w", err)
	}
	*g = splitGroups(joined)
	return nil
}

func splitGroups(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Claims are the identity claims carried by a bearer token.
type Claims struct {
	Email      string `json:"email,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Groups     Groups `json:"cognito:groups,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 tokens for one issuer and audience.
type JWTManager struct {
	secret   string
	issuer   string
	audience string
	expiry   time.Duration
}

func NewJWTManager(secret, issuer, audience string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
	}
}

// ValidateConfig reports settings that would make every token unusable.
func (j *JWTManager) ValidateConfig() error {
	switch {
	case j.secret == "":
		return errors.New("JWT secret is required")
	case len(j.secret) < minSecretLength:
		return fmt.Errorf("JWT secret must be at least %d characters", minSecretLength)
	case j.issuer == "":
		return errors.New("JWT issuer is required")
	case j.audience == "":
		return errors.New("JWT audience is required")
	case j.expiry <= 0:
		return errors.New("JWT expiry must be positive")
	}
	return nil
}

// Identity is what GenerateToken puts into a token.
type Identity struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Groups     []string
}

func (j *JWTManager) GenerateToken(id Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:      id.Email,
		GivenName:  id.GivenName,
		FamilyName: id.FamilyName,
		Groups:     id.Groups,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Audience:  []string{j.audience},
			Subject:   id.Subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secret))
}

// ValidateToken verifies signature, expiry, issuer and audience.
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secret), nil
	}, jwt.WithIssuer(j.issuer), jwt.WithAudience(j.audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
