package query

import (
	"sort"
	"strings"

	"github.com/searchforge/creators_proxy/internal/contract"
)

// Sortable reports whether field is one of the sortable record fields.
func Sortable(field string) bool {
	for _, f := range contract.SortableFields {
		if f == field {
			return true
		}
	}
	return false
}

// Apply filters, sorts and paginates records according to p. The input slice
// is never modified; callers may pass a shared cache snapshot.
func Apply(records []contract.Creator, p contract.Params) contract.Envelope {
	filtered := Filter(records, p)
	Sort(filtered, p.SortBy, p.Descending())

	return contract.Envelope{
		Query:        p.Query,
		Service:      p.Service,
		SortBy:       p.SortBy,
		Order:        p.Order,
		Page:         p.Page,
		PerPage:      p.PerPage,
		FavoritedMin: p.FavoritedMin,
		Total:        len(filtered),
		Results:      Paginate(filtered, p.Page, p.PerPage),
	}
}

// Filter returns a new slice holding the records that pass the search term,
// service and favorited threshold filters, in input order.
func Filter(records []contract.Creator, p contract.Params) []contract.Creator {
	term := strings.ToLower(p.Query)
	service := strings.ToLower(p.Service)
	threshold := float64(p.FavoritedMin)

	out := make([]contract.Creator, 0, len(records))
	for _, rec := range records {
		if term != "" && !matchesTerm(rec, term) {
			continue
		}
		if service != "" && strings.ToLower(rec.String("service")) != service {
			continue
		}
		if rec.Number("favorited") < threshold {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matchesTerm(rec contract.Creator, term string) bool {
	return strings.Contains(strings.ToLower(rec.String("id")), term) ||
		strings.Contains(strings.ToLower(rec.String("name")), term)
}

// Sort orders records in place by field. Unknown fields leave the upstream
// order intact. Ties keep their relative order in both directions.
func Sort(records []contract.Creator, field string, descending bool) {
	if len(records) <= 1 || !Sortable(field) {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Number(field), records[j].Number(field)
		if descending {
			return a > b
		}
		return a < b
	})
}

// Paginate returns the 1-based page of records. Pages past the end are empty.
// The page bound is checked before multiplying so huge page numbers cannot
// overflow into a valid offset.
func Paginate(records []contract.Creator, page, perPage int) []contract.Creator {
	if page < 1 || perPage < 1 {
		return []contract.Creator{}
	}
	pages := len(records) / perPage
	if len(records)%perPage != 0 {
		pages++
	}
	if page-1 >= pages {
		return []contract.Creator{}
	}
	start := (page - 1) * perPage
	end := len(records)
	if perPage < end-start {
		end = start + perPage
	}
	return records[start:end]
}
