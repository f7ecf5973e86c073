package browser

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/noah-isme/supatable-api/internal/models"
)

// SortKey names a column the loaded page can be ordered by.
type SortKey string

const (
	SortID        SortKey = "id"
	SortEmail     SortKey = "email"
	SortFullName  SortKey = "fullName"
	SortRole      SortKey = "role"
	SortCreatedAt SortKey = "createdAt"
)

var sortKeys = []SortKey{SortID, SortEmail, SortFullName, SortRole, SortCreatedAt}

// ParseSortKey matches a column name case-insensitively.
func ParseSortKey(raw string) (SortKey, bool) {
	for _, key := range sortKeys {
		if strings.EqualFold(raw, string(key)) {
			return key, true
		}
	}
	return "", false
}

// Sort orders the rows of the loaded page. It never changes what the server is asked for.
type Sort struct {
	Key  SortKey
	Desc bool
}

// DefaultSort matches the server order.
func DefaultSort() Sort {
	return Sort{Key: SortCreatedAt, Desc: true}
}

// Toggle flips direction when key is the current key, otherwise sorts by key ascending.
func (s Sort) Toggle(key SortKey) Sort {
	if s.Key == key {
		return Sort{Key: key, Desc: !s.Desc}
	}
	return Sort{Key: key}
}

// SortRows returns a stably sorted copy of rows.
func SortRows(rows []models.User, s Sort) []models.User {
	sorted := make([]models.User, len(rows))
	copy(sorted, rows)

	less := func(a, b models.User) bool {
		switch s.Key {
		case SortID:
			return foldLess(a.ID, b.ID)
		case SortEmail:
			return foldLess(a.Email, b.Email)
		case SortFullName:
			return foldLess(a.FullName, b.FullName)
		case SortRole:
			return foldLess(string(a.Role), string(b.Role))
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if s.Desc {
			return less(sorted[j], sorted[i])
		}
		return less(sorted[i], sorted[j])
	})
	return sorted
}

// foldLess orders strings ignoring case, falling back to byte order so the result is total.
func foldLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// Mode is the single thing the view shows.
type Mode int

const (
	ModeError Mode = iota
	ModeLoading
	ModeEmpty
	ModePopulated
)

func (m Mode) String() string {
	switch m {
	case ModeError:
		return "error"
	case ModeLoading:
		return "loading"
	case ModeEmpty:
		return "empty"
	default:
		return "populated"
	}
}

// View is everything a renderer needs for one frame.
type View struct {
	Mode     Mode
	Header   string
	Footer   string
	Pills    []string
	CanReset bool
	Error    string
	Rows     []models.User
	Sort     Sort
	Filter   models.UserFilter
	Draft    string
}

// BuildView derives the frame for snap with rows ordered by s.
func BuildView(snap Snapshot, s Sort) View {
	v := View{
		Sort:     s,
		Filter:   snap.Filter,
		Draft:    snap.DraftSearch,
		CanReset: snap.Filter.Active() || snap.DraftSearch != "",
		Rows:     []models.User{},
	}

	if snap.Filter.HasSearch() {
		v.Pills = append(v.Pills, fmt.Sprintf("search: %q", snap.Filter.Search))
	}
	if snap.Filter.HasRole() {
		v.Pills = append(v.Pills, "role: "+string(snap.Filter.Role))
	}

	switch {
	case snap.State == StateFailed:
		v.Mode = ModeError
		v.Error = snap.Err
	case len(snap.Items) == 0 && (snap.Fetching() || snap.State == StateIdle):
		v.Mode = ModeLoading
	case len(snap.Items) == 0:
		v.Mode = ModeEmpty
	default:
		v.Mode = ModePopulated
		v.Rows = SortRows(snap.Items, s)
	}

	if v.Mode == ModeLoading {
		v.Header = "Loading…"
	} else {
		v.Header = fmt.Sprintf("Showing %d / %d", len(v.Rows), snap.TotalCount)
	}

	if snap.Fetching() {
		v.Footer = "fetching…"
	} else {
		v.Footer = "ready"
	}
	return v
}

// Render writes v as plain text.
func Render(w io.Writer, v View) error {
	var b strings.Builder

	b.WriteString(v.Header)
	fmt.Fprintf(&b, "  (offset %d, limit %d)\n", v.Filter.Offset, v.Filter.Limit)
	if v.Draft != v.Filter.Search {
		fmt.Fprintf(&b, "search: %s_\n", v.Draft)
	}
	if len(v.Pills) > 0 {
		b.WriteString("[" + strings.Join(v.Pills, "] [") + "]")
		if v.CanReset {
			b.WriteString("  reset")
		}
		b.WriteString("\n")
	}

	switch v.Mode {
	case ModeError:
		fmt.Fprintf(&b, "error: %s\n", v.Error)
	case ModeLoading:
		b.WriteString("loading users…\n")
	case ModeEmpty:
		b.WriteString("no users found\n")
	default:
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join([]string{
			columnTitle("ID", SortID, v.Sort),
			columnTitle("EMAIL", SortEmail, v.Sort),
			columnTitle("NAME", SortFullName, v.Sort),
			columnTitle("ROLE", SortRole, v.Sort),
			columnTitle("CREATED", SortCreatedAt, v.Sort),
		}, "\t"))
		for _, u := range v.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.FullName, u.Role, u.CreatedAt.UTC().Format(time.RFC3339))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	b.WriteString(v.Footer + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func columnTitle(title string, key SortKey, s Sort) string {
	if s.Key != key {
		return title
	}
	if s.Desc {
		return title + " v"
	}
	return title + " ^"
}
