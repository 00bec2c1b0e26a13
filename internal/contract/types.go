package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const TraceIDHeader = "X-Trace-Id"

// Sort directions accepted by the query engine.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Bounds and defaults for inbound query parameters.
const (
	DefaultSortBy  = "favorited"
	DefaultOrder   = OrderDesc
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// SortableFields lists the record fields a query may sort on.
var SortableFields = []string{"favorited", "indexed", "updated"}

// Creator is a single upstream record. Keys beyond the known ones are passed
// through untouched.
type Creator map[string]any

// String returns the named field as a string. Missing or non-string values
// yield "".
func (c Creator) String(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Number returns the named field as a float64. Missing, null or non-numeric
// values yield 0.
func (c Creator) Number(key string) float64 {
	switch v := c[key].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Params captures validated /creators query parameters.
type Params struct {
	Query        string
	Service      string
	SortBy       string
	Order        string
	Page         int
	PerPage      int
	FavoritedMin int
}

// DefaultParams returns the parameters used when a request sets none.
func DefaultParams() Params {
	return Params{
		SortBy:  DefaultSortBy,
		Order:   DefaultOrder,
		Page:    DefaultPage,
		PerPage: DefaultPerPage,
	}
}

// Descending reports whether results are sorted high to low. Anything other
// than "asc" sorts descending.
func (p Params) Descending() bool {
	return !strings.EqualFold(p.Order, OrderAsc)
}

// Validate ensures the parameters are within bounds.
func (p Params) Validate() error {
	if p.Page < 1 {
		return fmt.Errorf("page must be >= 1")
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		return fmt.Errorf("per_page must be between 1 and %d", MaxPerPage)
	}
	if p.FavoritedMin < 0 {
		return fmt.Errorf("favorited_min must be >= 0")
	}
	return nil
}

// Envelope is the public response schema for /creators.
type Envelope struct {
	Query        string    `json:"query"`
	Service      string    `json:"service"`
	SortBy       string    `json:"sort_by"`
	Order        string    `json:"order"`
	Page         int       `json:"page"`
	PerPage      int       `json:"per_page"`
	FavoritedMin int       `json:"favorited_min"`
	Total        int       `json:"total"`
	Results      []Creator `json:"results"`
}

// ErrorResponse is returned in place of an envelope when a request fails.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
}

// StatusResponse acknowledges status probes and cache refreshes.
type StatusResponse struct {
	Status  string `json:"status"`
	Records *int   `json:"records,omitempty"`
}

type contextKey string

const traceIDKey contextKey = "creators_proxy_trace_id"

// WithTraceID stores the trace identifier in context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext extracts the trace identifier.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value := ctx.Value(traceIDKey)
	if value == nil {
		return "", false
	}
	traceID, ok := value.(string)
	return traceID, ok
}
