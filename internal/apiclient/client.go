package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/infra"
)

// Request описывает один вызов REST API.
type Request struct {
	Name   string // метка для метрик и логов, например "alerts.list"
	Method string
	Path   string // "/api/alerts/{id}" с уже подставленными значениями
	Query  url.Values
	Body   any // сериализуется в JSON, nil значит без тела
}

// Client: тонкий слой вызова бэкенда. Базовый URL приходит из конфига,
// токен запрашивается у TokenSource перед каждым запросом.
type Client struct {
	baseURL   string
	tokens    TokenSource
	transport *reliableTransport
	metrics   *Metrics
	logger    *zap.Logger
}

type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	metrics    *Metrics
}

// WithHTTPClient подменяет http.Client (тесты, кастомный TLS).
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

func WithMetrics(m *Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// New создает клиента. tokens может быть nil, тогда Do ничего не отправляет
// и возвращает ErrNoTokenSource.
func New(cfg infra.APIConfig, tokens TokenSource, logger *zap.Logger, opts ...Option) *Client {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		o.httpClient = &http.Client{Timeout: timeout}
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = infra.DefaultBaseURL
	}

	logger = logger.Named("apiclient")
	return &Client{
		baseURL:   baseURL,
		tokens:    tokens,
		transport: newReliableTransport(cfg, o.httpClient, o.metrics, logger),
		metrics:   o.metrics,
		logger:    logger,
	}
}

// HasTokenSource: панели проверяют это до перехода в Loading.
func (c *Client) HasTokenSource() bool {
	return c != nil && c.tokens != nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// Do выполняет ровно один HTTP запрос и возвращает тело успешного ответа.
// Проверка токена идет до любого сетевого вызова: частично авторизованный
// запрос никогда не уходит на сервер.
func (c *Client) Do(ctx context.Context, r Request) (body []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.Requests.WithLabelValues(r.Name, string(Classify(err))).Inc()
	}()

	if c.tokens == nil {
		return nil, ErrNoTokenSource
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthTokenMissing, err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrAuthTokenMissing
	}

	req, err := c.newRequest(ctx, r, token)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.roundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	c.metrics.RequestDuration.WithLabelValues(r.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, body)
		c.logger.Debug("backend returned error",
			zap.String("endpoint", r.Name),
			zap.Int("status", apiErr.Status),
			zap.String("detail", apiErr.Detail),
			zap.String("trace_id", req.Header.Get(TraceHeader)))
		return nil, apiErr
	}

	return body, nil
}

func (c *Client) newRequest(ctx context.Context, r Request, token string) (*http.Request, error) {
	u := c.baseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		raw, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", r.Name, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", r.Name, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(TraceHeader, traceIDFrom(ctx))
	return req, nil
}
