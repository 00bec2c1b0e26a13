package sources

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

	"go.uber.org/zap"

	"github.com/searchforge/creators_proxy/internal/contract"
)

const (
	DefaultURL     = "https://coomer.st/api/v1/creators"
	DefaultAccept  = "text/css"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

var (
	// ErrUpstreamUnavailable matches upstream responses with a non-success status.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamUnreachable matches transport-level failures.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	// ErrUpstreamMalformed matches response bodies that are not a JSON array.
	ErrUpstreamMalformed = errors.New("upstream response malformed")
)

// ErrorKind classifies an UpstreamError.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindUnreachable ErrorKind = "unreachable"
	KindMalformed   ErrorKind = "malformed"
)

// UpstreamError describes a failed fetch. StatusCode is set for
// KindUnavailable and KindMalformed.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case KindUnavailable:
		return fmt.Sprintf("failed to fetch upstream data (%d)", e.StatusCode)
	case KindMalformed:
		return fmt.Sprintf("failed to decode upstream data: %v", e.Err)
	default:
		return fmt.Sprintf("failed to reach upstream: %v", e.Err)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstreamUnavailable:
		return e.Kind == KindUnavailable
	case ErrUpstreamUnreachable:
		return e.Kind == KindUnreachable
	case ErrUpstreamMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// HTTPClient represents a minimal http client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config groups CreatorSource settings.
type Config struct {
	URL       string
	Accept    string
	UserAgent string
}

// CreatorSource fetches the full creator listing from the upstream endpoint.
type CreatorSource struct {
	url       string
	accept    string
	userAgent string
	client    HTTPClient
	logger    *zap.Logger
}

// NewCreatorSource creates an upstream client. A nil client gets a plain
// http.Client with the default timeout.
func NewCreatorSource(cfg Config, client HTTPClient, logger *zap.Logger) (*CreatorSource, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("source url required")
	}
	if client == nil {
		client = &http.Client{
			Timeout: defaultTimeout,
		}
	}
	if cfg.Accept == "" {
		cfg.Accept = DefaultAccept
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CreatorSource{
		url:       url,
		accept:    cfg.Accept,
		userAgent: cfg.UserAgent,
		client:    client,
		logger:    logger,
	}, nil
}

// Fetch performs a single GET against the upstream and decodes the JSON
// array body. There is no retry; failures are returned as *UpstreamError.
func (s *CreatorSource) Fetch(ctx context.Context) ([]contract.Creator, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", s.accept)
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	start := time.Now()
	s.logger.Info("fetching creators from upstream", zap.String("url", s.url))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Kind: KindUnreachable, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			Kind:       KindUnavailable,
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}

	records, err := decodeCreators(body)
	if err != nil {
		return nil, &UpstreamError{Kind: KindMalformed, StatusCode: resp.StatusCode, Err: err}
	}

	s.logger.Info("fetched creators from upstream",
		zap.Int("records", len(records)),
		zap.Duration("took", time.Since(start)),
	)
	return records, nil
}

func (s *CreatorSource) String() string {
	return fmt.Sprintf("creator_source{url=%s}", s.url)
}

func decodeCreators(body []byte) ([]contract.Creator, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var records []contract.Creator
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	if records == nil {
		// "null" decodes without error but is not an array.
		return nil, fmt.Errorf("expected JSON array")
	}
	return records, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
