// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Kappa/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenWrongType = errors.New("token has the wrong type")
)

const (
	TokenTypeSession = "session"
	TokenTypeReset   = "reset"
)

// TokenService issues and verifies the two token kinds. A token of one kind
// is never accepted as the other.
type TokenService interface {
	GenerateSessionToken(accountID uint) (string, error)
	GenerateResetToken(accountID uint) (string, *TokenClaims, error)
	ValidateSessionToken(token string) (*TokenClaims, error)
	ValidateResetToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in a JWT token
type TokenClaims struct {
	AccountID uint      `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"` // "session" or "reset"
	TokenID   string    `json:"jti"`
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	sessionTTL    time.Duration
	resetTTL      time.Duration
	signingMethod jwt.SigningMethod
	secretKey     []byte
	issuer        string
	audience      string
	now           func() time.Time
}

// NewTokenService creates a new HMAC token service
func NewTokenService(sessionTTL, resetTTL time.Duration, issuer, audience, secretKey string) (TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	if sessionTTL <= 0 {
		sessionTTL = utils.SessionTokenTTL
	}
	if resetTTL <= 0 {
		resetTTL = utils.ResetTokenTTL
	}

	return &TokenServiceImpl{
		sessionTTL:    sessionTTL,
		resetTTL:      resetTTL,
		signingMethod: jwt.SigningMethodHS256,
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		audience:      audience,
		now:           utils.UTCNow,
	}, nil
}

// GenerateSessionToken issues a session token for the account
func (s *TokenServiceImpl) GenerateSessionToken(accountID uint) (string, error) {
	token, _, err := s.issue(accountID, TokenTypeSession, s.sessionTTL)
	return token, err
}

// GenerateResetToken issues a password reset token and returns its claims
func (s *TokenServiceImpl) GenerateResetToken(accountID uint) (string, *TokenClaims, error) {
	return s.issue(accountID, TokenTypeReset, s.resetTTL)
}

func (s *TokenServiceImpl) ValidateSessionToken(token string) (*TokenClaims, error) {
	return s.validate(token, TokenTypeSession)
}

func (s *TokenServiceImpl) ValidateResetToken(token string) (*TokenClaims, error) {
	return s.validate(token, TokenTypeReset)
}

func (s *TokenServiceImpl) issue(accountID uint, tokenType string, ttl time.Duration) (string, *TokenClaims, error) {
	now := s.now()

	tokenID, err := generateTokenID()
	if err != nil {
		return "", nil, err
	}

	claims := jwt.MapClaims{
		"account_id": accountID,
		"token_type": tokenType,
		"jti":        tokenID,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		"iss":        s.issuer,
		"aud":        s.audience,
	}

	signed, err := s.generateToken(claims)
	if err != nil {
		return "", nil, err
	}

	return signed, &TokenClaims{
		AccountID: accountID,
		TokenType: tokenType,
		TokenID:   tokenID,
		IssuedAt:  time.Unix(now.Unix(), 0),
		ExpiresAt: time.Unix(now.Add(ttl).Unix(), 0),
	}, nil
}

func (s *TokenServiceImpl) validate(token, expectedType string) (*TokenClaims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	accountID, ok := claims["account_id"].(float64)
	if !ok || accountID <= 0 {
		return nil, ErrTokenInvalid
	}

	tokenType, ok := claims["token_type"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}
	if tokenType != expectedType {
		return nil, ErrTokenWrongType
	}

	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	if iss, _ := claims["iss"].(string); iss != s.issuer {
		return nil, ErrTokenInvalid
	}
	if aud, _ := claims["aud"].(string); aud != s.audience {
		return nil, ErrTokenInvalid
	}

	return &TokenClaims{
		AccountID: uint(accountID),
		TokenType: tokenType,
		TokenID:   tokenID,
		IssuedAt:  time.Unix(int64(issuedAt), 0),
		ExpiresAt: time.Unix(int64(expiresAt), 0),
	}, nil
}

// generateToken creates a signed JWT token
func (s *TokenServiceImpl) generateToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(s.signingMethod, claims)

	signedString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedString, nil
}

// generateTokenID creates a unique token identifier
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}
	return fmt.Sprintf("%x", bytes), nil
}
