package domain

import "errors"

// ErrShapeMismatch: ответ API не совпал с ожидаемой схемой.
var ErrShapeMismatch = errors.New("response shape mismatch")

// Validator реализуют все сущности, которые декодируются на границе с API.
type Validator interface {
	Validate() error
}

// ErrNotFound: сущности нет в хранилище devapi.
var ErrNotFound = errors.New("not found")
