package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xela07ax/vintrade-console/internal/domain"
)

var (
	// ErrNoTokenSource: клиенту не передали источник токена. Запрос не делается, это не ошибка для UI.
	ErrNoTokenSource = errors.New("apiclient: no token source configured")
	// ErrAuthTokenMissing: токен пустой или его не удалось получить. Сеть не трогаем.
	ErrAuthTokenMissing = errors.New("apiclient: auth token missing")
	// ErrUnauthorized матчится с любым *APIError со статусом 401.
	ErrUnauthorized = errors.New("apiclient: unauthorized")
)

// GenericErrorMessage показывается, когда нечего больше показать.
const GenericErrorMessage = "Something went wrong. Please try again."

const missingTokenMessage = "Authentication required. Please sign in again."

// APIError: сервер ответил не-2xx.
type APIError struct {
	Status int
	Detail string // поле "detail" из тела ответа, если оно строковое
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("request failed with status code %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TransportError: ответа от сервера нет (DNS, таймаут, открытый Circuit Breaker).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Kind: класс отказа, используется в метриках и при выборе текста для UI.
type Kind string

const (
	KindOK            Kind = "ok"
	KindNoTokenSource Kind = "no_token_source"
	KindMissingToken  Kind = "missing_token"
	KindUnauthorized  Kind = "unauthorized"
	KindTransport     Kind = "transport"
	KindApplication   Kind = "application"
	KindShapeMismatch Kind = "shape_mismatch"
	KindCanceled      Kind = "canceled"
	KindUnknown       Kind = "unknown"
)

func Classify(err error) Kind {
	var (
		apiErr   *APIError
		transErr *TransportError
	)
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrNoTokenSource):
		return KindNoTokenSource
	case errors.Is(err, ErrAuthTokenMissing):
		return KindMissingToken
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.As(err, &apiErr):
		return KindApplication
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &transErr):
		return KindTransport
	case errors.Is(err, domain.ErrShapeMismatch):
		return KindShapeMismatch
	}
	return KindUnknown
}

// UserMessage возвращает текст для баннера и флаг, нужно ли его показывать.
// 401 и отсутствие источника токена не показываются: первое, гонка обновления токена,
// второе: панель просто еще не готова.
func UserMessage(err error) (string, bool) {
	switch Classify(err) {
	case KindOK, KindNoTokenSource, KindUnauthorized:
		return "", false
	case KindMissingToken:
		return missingTokenMessage, true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail, true
	}

	var transErr *TransportError
	if errors.As(err, &transErr) && transErr.Err != nil {
		if msg := strings.TrimSpace(transErr.Err.Error()); msg != "" {
			return msg, true
		}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg, true
	}
	return GenericErrorMessage, true
}

// parseAPIError достает detail из тела ошибки. detail может быть не строкой
// (например, список ошибок валидации), тогда оставляем пустым.
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return e
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		e.Detail = strings.TrimSpace(detail)
	}
	return e
}
