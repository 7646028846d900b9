package internal

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"synapse-project-api/internal/api"
	"synapse-project-api/internal/models"
)

// listParams holds the query parameters of the project list endpoint
type listParams struct {
	paged  bool
	page   int
	limit  int
	search string
	sort   string
	desc   bool
}

// parseListParams reads page, limit, search, sort and order. The list is
// paged only when page or limit is present. Invalid numbers fall back to the
// defaults; limit is capped at maxLimit.
func parseListParams(r *http.Request, defaultLimit, maxLimit int) listParams {
	values := r.URL.Query()

	params := listParams{
		paged:  values.Has("page") || values.Has("limit"),
		page:   1,
		limit:  defaultLimit,
		search: strings.TrimSpace(values.Get("search")),
		sort:   "updatedAt",
		desc:   true,
	}

	if s := strings.TrimSpace(values.Get("page")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			params.page = v
		}
	}
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			params.limit = min(v, maxLimit)
		}
	}
	switch s := strings.TrimSpace(values.Get("sort")); s {
	case "updatedAt", "createdAt", "name":
		params.sort = s
	}
	if strings.EqualFold(strings.TrimSpace(values.Get("order")), "asc") {
		params.desc = false
	}
	return params
}

// paginate filters, orders and slices projects according to params.
func paginate(projects []models.ProjectDTO, params listParams) api.PaginatedResponse[models.ProjectDTO] {
	filtered := projects
	if params.search != "" {
		needle := strings.ToLower(params.search)
		filtered = make([]models.ProjectDTO, 0, len(projects))
		for _, p := range projects {
			if strings.Contains(strings.ToLower(p.Name), needle) ||
				strings.Contains(strings.ToLower(p.Description), needle) {
				filtered = append(filtered, p)
			}
		}
	}

	sorted := slices.Clone(filtered)
	slices.SortStableFunc(sorted, func(a, b models.ProjectDTO) int {
		var c int
		switch params.sort {
		case "name":
			c = cmp.Compare(a.Name, b.Name)
		case "createdAt":
			c = a.CreatedAt.Compare(b.CreatedAt)
		default:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		}
		if params.desc {
			return -c
		}
		return c
	})

	total := len(sorted)
	totalPages := 0
	if total > 0 {
		totalPages = (total + params.limit - 1) / params.limit
	}

	// pages past the end are empty; comparing first keeps huge page numbers
	// from overflowing the offset
	start := total
	if params.page-1 < totalPages {
		start = (params.page - 1) * params.limit
	}
	end := min(start+params.limit, total)

	return api.PaginatedResponse[models.ProjectDTO]{
		Data: sorted[start:end],
		Pagination: api.Pagination{
			Page:       params.page,
			Limit:      params.limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}
