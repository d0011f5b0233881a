package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/model"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

// HTTPStore talks to the school backend's per-student RMIB endpoints:
// start/, load/, save/ and submit/ under one base URL.
type HTTPStore struct {
	base       *url.URL
	httpClient *http.Client
	log        zerolog.Logger

	mu   sync.Mutex
	page PageTokens
}

// Option configures the store.
type Option func(*HTTPStore)

// WithHTTPClient sets a custom HTTP client. The store works on a copy, so
// later options and the cookie jar setup leave the caller's client alone.
// A client without a cookie jar gets one, because the csrftoken cookie is a
// token source.
func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTPStore) {
		c := *client
		s.httpClient = &c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *HTTPStore) {
		s.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *HTTPStore) {
		s.log = log
	}
}

// NewHTTPStore creates a store rooted at the student's RMIB URL, e.g.
// http://host/students/42/rmib/.
func NewHTTPStore(studentURL string, opts ...Option) (*HTTPStore, error) {
	base, err := url.Parse(studentURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Path == "" || base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}

	s := &HTTPStore{
		base:       base,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		s.httpClient.Jar = jar
	}
	s.log = s.log.With().Str("component", "http_store").Logger()

	return s, nil
}

// RefreshTokens fetches the test page, which sets the csrftoken cookie and
// carries the hidden form field and meta tag.
func (s *HTTPStore) RefreshTokens(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &rmib.NetworkError{Op: "page", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &rmib.NetworkError{Op: "page", Status: resp.StatusCode}
	}

	tokens, err := ParsePageTokens(resp.Body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.page = tokens
	s.mu.Unlock()
	return nil
}

// CSRFToken returns the first available token: hidden form field, cookie,
// then meta tag. Empty when none is known.
func (s *HTTPStore) CSRFToken() string {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	return resolveToken(page, cookieToken(s.httpClient.Jar, s.base))
}

// Start begins or resumes the test. A missing CSRF token is fatal here
// because every later mutating call would be rejected.
func (s *HTTPStore) Start(ctx context.Context) (*StartResult, error) {
	if err := s.RefreshTokens(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Test page fetch failed, relying on cookie jar")
	}
	if s.CSRFToken() == "" {
		return nil, &rmib.NetworkError{Op: "start", Err: ErrCSRFTokenMissing}
	}

	var out model.StartResponse
	if err := s.do(ctx, "start", http.MethodPost, "start/", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &rmib.DataIntegrityError{Op: "start", Message: out.Message}
	}
	return &StartResult{Message: out.Message, HasProgress: out.HasProgress}, nil
}

// Load fetches saved progress.
func (s *HTTPStore) Load(ctx context.Context, mode rmib.Mode) (*LoadResult, error) {
	var out model.LoadResponse
	if err := s.do(ctx, "load", http.MethodGet, "load/", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &rmib.DataIntegrityError{Op: "load", Message: out.Message}
	}

	values := valuesFor(mode, out.Levels, out.Rankings)
	if !out.HasProgress || len(values) == 0 {
		return &LoadResult{Found: false}, nil
	}
	return &LoadResult{Values: values, Found: true, SavedAt: out.SavedAt}, nil
}

// Save stores the snapshot. The server keeps the last write to arrive.
func (s *HTTPStore) Save(ctx context.Context, snap rmib.Snapshot) error {
	var out model.SaveResponse
	if err := s.do(ctx, "save", http.MethodPost, "save/", PayloadFor(snap), &out); err != nil {
		return err
	}
	if !out.Success {
		return &rmib.DataIntegrityError{Op: "save", Message: out.Message}
	}
	return nil
}

// Submit sends the final assignment for scoring.
func (s *HTTPStore) Submit(ctx context.Context, snap rmib.Snapshot) (*SubmitResult, error) {
	var out model.SubmitResponse
	if err := s.do(ctx, "submit", http.MethodPost, "submit/", PayloadFor(snap), &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &rmib.DataIntegrityError{Op: "submit", Message: out.Message}
	}

	redirect := out.RedirectURL
	if redirect == "" {
		redirect = s.base.JoinPath("result/").Path
	}
	return &SubmitResult{
		TotalScore:      out.TotalScore,
		PrimaryInterest: out.PrimaryInterest,
		PrimaryLevel:    out.PrimaryLevel,
		RedirectURL:     redirect,
		Message:         out.Message,
	}, nil
}

// do performs one JSON request. Transport failures and non-2xx statuses
// become *rmib.NetworkError; an undecodable 2xx body is a data integrity error.
func (s *HTTPStore) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	target := s.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", s.base.String())
	if method != http.MethodGet {
		if token := s.CSRFToken(); token != "" {
			req.Header.Set(CSRFHeader, token)
		} else {
			s.log.Warn().Str("op", op).Msg("Sending request without CSRF token")
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &rmib.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &rmib.NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Message string `json:"message"`
		}
		cause := errors.New(http.StatusText(resp.StatusCode))
		if json.Unmarshal(respBody, &failure) == nil && failure.Message != "" {
			cause = errors.New(failure.Message)
		}
		return &rmib.NetworkError{Op: op, Status: resp.StatusCode, Err: cause}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &rmib.DataIntegrityError{Op: op, Message: fmt.Sprintf("Respons server tidak valid: %v", err)}
	}
	return nil
}
