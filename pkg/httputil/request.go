package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ParseJSONOrError decodes the request body into dst. On failure it writes a
// 400 response and returns false; the caller should return immediately.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// ParseQueryInt returns a query parameter as int, or the default when absent
// or malformed.
func ParseQueryInt(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// ParseQueryBool returns a query parameter as bool, or the default when absent.
func ParseQueryBool(r *http.Request, name string, defaultValue bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	return strings.EqualFold(raw, "true") || raw == "1"
}

// PageParams holds validated pagination and sort parameters.
type PageParams struct {
	Limit  int
	Offset int
	Sort   string
}

// ParsePageParams validates limit/offset/sort query parameters against the
// allowed sort fields. Mirrors the server-side validation the list endpoints
// perform before touching storage.
func ParsePageParams(r *http.Request, allowedSorts ...string) (PageParams, error) {
	p := PageParams{
		Limit:  ParseQueryInt(r, "size", 50),
		Offset: ParseQueryInt(r, "from", 0),
		Sort:   r.URL.Query().Get("sort"),
	}

	if p.Limit < 1 {
		return p, fmt.Errorf("size must not be less than one")
	}
	if p.Offset < 0 {
		return p, fmt.Errorf("from must not be less than zero")
	}

	if p.Sort != "" {
		field := strings.TrimSuffix(strings.TrimSuffix(p.Sort, ".asc"), ".desc")
		valid := false
		for _, allowed := range allowedSorts {
			if field == allowed {
				valid = true
				break
			}
		}
		if !valid {
			return p, fmt.Errorf("invalid sort param %q", p.Sort)
		}
	}

	return p, nil
}

// SortOrder splits a sort param of the form "field.desc" into column and
// direction, defaulting to ascending.
func (p PageParams) SortOrder(defaultField string) (field string, descending bool) {
	if p.Sort == "" {
		return defaultField, false
	}
	if strings.HasSuffix(p.Sort, ".desc") {
		return strings.TrimSuffix(p.Sort, ".desc"), true
	}
	return strings.TrimSuffix(p.Sort, ".asc"), false
}
