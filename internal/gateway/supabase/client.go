// Package supabase реализует удалённый шлюз поверх HTTP API хостинга:
// аутентификация в стиле GoTrue (/auth/v1) и строки в стиле PostgREST (/rest/v1).
//
// Клиент хранит текущую сессию, обновляет просроченный access-токен перед
// запросами к строкам и рассылает события аутентификации подписчикам.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/camballey/tucan/internal/gateway"
	"github.com/camballey/tucan/internal/lib/notify"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

const adapter = "supabase"

// Client HTTP-клиент хостинга.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	session *models.Session
	// refreshMu не даёт двум запросам одновременно обменять один refresh-токен.
	refreshMu sync.Mutex
	events    notify.Broadcaster[models.AuthEvent]
}

// Option настройка клиента.
type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock подменяет часы.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New создаёт клиент для проекта baseURL с публичным ключом anonKey.
func New(baseURL, anonKey string, timeout time.Duration, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session текущая сессия клиента или nil.
func (c *Client) Session() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Clone()
}

// OnAuthStateChange подписывает fn на события аутентификации.
func (c *Client) OnAuthStateChange(fn func(models.AuthEvent)) (unsubscribe func()) {
	return c.events.Subscribe(fn)
}

func (c *Client) emit(t models.AuthEventType, s *models.Session) {
	c.events.Publish(models.AuthEvent{Type: t, Session: s.Clone()})
}

func (c *Client) setSession(s *models.Session) {
	c.mu.Lock()
	c.session = s.Clone()
	c.mu.Unlock()
}

// request описание одного HTTP-запроса к хостингу.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string
	prefer string
	accept string
}

// apiErrorBody объединяет форматы ошибок GoTrue и PostgREST.
type apiErrorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (b apiErrorBody) code() string {
	if b.ErrorCode != "" {
		return b.ErrorCode
	}
	if s, ok := b.Code.(string); ok && s != "" {
		return s
	}
	return b.Error
}

func (b apiErrorBody) message() string {
	for _, m := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

// do выполняет запрос и декодирует JSON-ответ в out (если out не nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	token := r.token
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", r.path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var b apiErrorBody
	_ = json.Unmarshal(raw, &b)

	apiErr := &gateway.APIError{Status: resp.StatusCode, Code: b.code(), Message: b.message()}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	switch {
	case apiErr.Code == "23505", apiErr.Code == "user_already_exists", apiErr.Code == "email_exists":
		return fmt.Errorf("%w: %s", gateway.ErrAlreadyExists, apiErr.Message)
	case apiErr.Code == "PGRST116":
		return fmt.Errorf("%w: %s", gateway.ErrNotFound, apiErr.Message)
	}
	return apiErr
}

func isUnauthorized(err error) bool {
	var apiErr *gateway.APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

// ensureSession возвращает действующую сессию, обновляя её при истечении.
// Неудачное обновление сбрасывает сессию и порождает signed_out.
func (c *Client) ensureSession(ctx context.Context) (*models.Session, error) {
	s := c.Session()
	if s == nil {
		return nil, gateway.ErrNoSession
	}
	if !s.IsExpired(c.now()) {
		return s, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	// пока ждали, сессию мог обновить другой запрос
	if cur := c.Session(); cur != nil && !cur.IsExpired(c.now()) {
		return cur, nil
	}

	fresh, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		if errors.Is(err, gateway.ErrSessionExpired) {
			c.setSession(nil)
			c.emit(models.EventSignedOut, nil)
		}
		return nil, err
	}
	c.setSession(fresh)
	c.log.Debug("session refreshed", sl.UserID(fresh.User.ID))
	c.emit(models.EventTokenRefreshed, fresh)
	return fresh, nil
}
