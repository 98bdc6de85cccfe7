package domain

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Scopes, которые выдаются оператору торговой консоли.
const (
	ScopeRead         = "console.read"
	ScopeAlertsWrite  = "alerts.write"
	ScopeGatesDecide  = "gates.decide"
	ScopeAutonomyEdit = "autonomy.write"
)

type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "alerts.write": true
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

func (t TokenResponse) Validate() error {
	if strings.TrimSpace(t.AccessToken) == "" {
		return fmt.Errorf("token response: %w: access_token is empty", ErrShapeMismatch)
	}
	return nil
}

// User: оператор консоли. Хранится только на стороне devapi.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"` // Никогда не отправляем на фронт
	Scopes       map[string]bool `json:"scopes"`
}
