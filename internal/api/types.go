package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/searchforge/creators_proxy/internal/contract"
)

// ParseParams reads /creators query parameters, applying defaults for absent
// values. Search terms are passed through as sent. Malformed or out of range
// integers are reported as errors.
func ParseParams(values url.Values) (contract.Params, error) {
	p := contract.DefaultParams()
	p.Query = values.Get("q")
	p.Service = values.Get("service")

	// A present but empty sort_by is kept: it matches no sortable field, so
	// upstream order is preserved.
	if values.Has("sort_by") {
		p.SortBy = values.Get("sort_by")
	}
	if values.Has("order") {
		p.Order = values.Get("order")
	}

	var err error
	if p.Page, err = parseInt(values, "page", p.Page); err != nil {
		return p, err
	}
	if p.PerPage, err = parseInt(values, "per_page", p.PerPage); err != nil {
		return p, err
	}
	if p.FavoritedMin, err = parseInt(values, "favorited_min", p.FavoritedMin); err != nil {
		return p, err
	}

	return p, p.Validate()
}

func parseInt(values url.Values, key string, fallback int) (int, error) {
	value := strings.TrimSpace(values.Get(key))
	if value == "" {
		return fallback, nil
	}
	num, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return num, nil
}
