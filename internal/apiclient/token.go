package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
)

// TokenSource: асинхронный геттер bearer-токена. Вызывается перед каждым запросом,
// время жизни токена на этом уровне не отслеживается.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc позволяет использовать функцию как TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken: готовый токен из конфига (auth.token).
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// PasswordTokenSource получает токен через POST /auth/token на каждый вызов.
// Сетевые сбои логина ретраятся, 4xx, нет.
type PasswordTokenSource struct {
	baseURL  string
	username string
	password string
	attempts uint
	http     *http.Client
	logger   *zap.Logger
}

func NewPasswordTokenSource(baseURL, username, password string, attempts uint, hc *http.Client, logger *zap.Logger) *PasswordTokenSource {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if attempts == 0 {
		attempts = 1
	}
	return &PasswordTokenSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		attempts: attempts,
		http:     hc,
		logger:   logger.Named("token-source"),
	}
}

func (s *PasswordTokenSource) Token(ctx context.Context) (string, error) {
	if s.username == "" {
		return "", nil
	}

	body, err := json.Marshal(domain.LoginRequest{Username: s.username, Password: s.password})
	if err != nil {
		return "", fmt.Errorf("marshal login request: %w", err)
	}

	var token string
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		// Ретраим только отсутствие ответа. Неверный пароль ретраить бессмысленно.
		retry.RetryIf(func(err error) bool {
			var tErr *TransportError
			return errors.As(err, &tErr)
		}),
	)

	attempt := 0
	err = r.Do(func() error {
		attempt++
		var loginErr error
		token, loginErr = s.login(ctx, body)
		if loginErr != nil {
			s.logger.Warn("login attempt failed", zap.Int("attempt", attempt), zap.Error(loginErr))
		}
		return loginErr
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *PasswordTokenSource) login(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", &TransportError{Op: "login", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "read login response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", parseAPIError(resp.StatusCode, raw)
	}

	tok, err := DecodeOne[domain.TokenResponse](raw)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
