package models

import "strings"

const (
	// DefaultUserLimit is used whenever the requested limit is out of range.
	DefaultUserLimit = 50
	// MaxUserLimit is the largest page size a caller may request.
	MaxUserLimit = 200
)

// UserFilter is the canonical {search, role, offset, limit} tuple used to list users.
// Values produced by NormalizeUserFilter always satisfy 0 <= Offset and 1 <= Limit <= MaxUserLimit.
type UserFilter struct {
	Search string   `json:"search"`
	Role   UserRole `json:"role"`
	Offset int      `json:"offset"`
	Limit  int      `json:"limit"`
}

// DefaultUserFilter returns the unfiltered first page.
func DefaultUserFilter() UserFilter {
	return UserFilter{Role: RoleAll, Offset: 0, Limit: DefaultUserLimit}
}

// NormalizeUserFilter turns raw input into a UserFilter. Out-of-range values are clamped, never rejected.
// Unknown roles are kept as-is and simply match no rows.
func NormalizeUserFilter(rawSearch, rawRole string, rawOffset, rawLimit int) UserFilter {
	role := UserRole(strings.TrimSpace(rawRole))
	if role == "" {
		role = RoleAll
	}

	offset := rawOffset
	if offset < 0 {
		offset = 0
	}

	limit := rawLimit
	if limit < 1 || limit > MaxUserLimit {
		limit = DefaultUserLimit
	}

	return UserFilter{
		Search: strings.TrimSpace(rawSearch),
		Role:   role,
		Offset: offset,
		Limit:  limit,
	}
}

// Normalize re-applies NormalizeUserFilter to f.
func (f UserFilter) Normalize() UserFilter {
	return NormalizeUserFilter(f.Search, string(f.Role), f.Offset, f.Limit)
}

// HasRole reports whether the filter restricts by role.
func (f UserFilter) HasRole() bool {
	return f.Role != "" && f.Role != RoleAll
}

// HasSearch reports whether the filter restricts by search text.
func (f UserFilter) HasSearch() bool {
	return f.Search != ""
}

// Active reports whether any user-visible filter is set.
func (f UserFilter) Active() bool {
	return f.HasRole() || f.HasSearch()
}

// Matches applies the search and role predicate to u. Offset and limit are not considered.
func (f UserFilter) Matches(u User) bool {
	if f.HasRole() && u.Role != f.Role {
		return false
	}
	if !f.HasSearch() {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(u.Email), needle) ||
		strings.Contains(strings.ToLower(u.FullName), needle) ||
		strings.Contains(strings.ToLower(string(u.Role)), needle)
}
