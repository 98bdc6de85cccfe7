package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xela07ax/vintrade-console/internal/domain"
)

// DecodeList разбирает ответ списочного эндпоинта. Допустимы две формы:
// {"<key>": [...]} или голый массив. Все остальное, ErrShapeMismatch,
// как и элемент, не прошедший Validate.
func DecodeList[T domain.Validator](body []byte, key string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrShapeMismatch)
	}

	var raw json.RawMessage
	switch body[0] {
	case '[':
		raw = body
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrShapeMismatch, err)
		}
		v, ok := wrapper[key]
		if !ok {
			return nil, fmt.Errorf("%w: key %q not found", domain.ErrShapeMismatch, key)
		}
		raw = v
	default:
		return nil, fmt.Errorf("%w: expected object or array", domain.ErrShapeMismatch)
	}

	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrShapeMismatch, err)
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// DecodeOne разбирает объект и валидирует его.
func DecodeOne[T domain.Validator](body []byte) (T, error) {
	var v T
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return v, fmt.Errorf("%w: expected object", domain.ErrShapeMismatch)
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("%w: %v", domain.ErrShapeMismatch, err)
	}
	if err := v.Validate(); err != nil {
		return v, err
	}
	return v, nil
}
