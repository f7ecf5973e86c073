package browser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/noah-isme/supatable-api/internal/models"
)

const helpText = `commands:
  s <text>       search (debounced), "s" alone clears it
  role <name>    All, Admin, Manager, User
  next | prev    page forward or back
  offset <n>     jump to offset
  limit <n>      page size (1-200)
  sort <column>  id, email, fullName, role, createdAt (again to flip)
  reset          clear every filter
  refresh        retry the current query
  help | quit
`

// Session connects a line-oriented terminal to a Coordinator.
type Session struct {
	coord *Coordinator
	out   io.Writer
	sort  Sort
}

// NewSession renders to out with the default sort.
func NewSession(coord *Coordinator, out io.Writer) *Session {
	return &Session{coord: coord, out: out, sort: DefaultSort()}
}

// Run reads commands from in until quit, EOF or ctx is done, redrawing on every state change.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case <-s.coord.Changes():
			if err := s.Draw(); err != nil {
				return err
			}
		case line := <-lines:
			quit, err := s.Exec(line)
			if err != nil {
				fmt.Fprintf(s.out, "%v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Draw renders the current snapshot.
func (s *Session) Draw() error {
	return Render(s.out, BuildView(s.coord.Snapshot(), s.sort))
}

// Exec applies one command line. It reports whether the session should end.
func (s *Session) Exec(line string) (bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "q", "quit", "exit":
		return true, nil
	case "h", "help", "?":
		_, err := io.WriteString(s.out, helpText)
		return false, err
	case "s", "search":
		s.coord.SetSearch(arg)
	case "role":
		role, err := parseRole(arg)
		if err != nil {
			return false, err
		}
		s.coord.SetRole(role)
	case "n", "next":
		s.coord.NextPage()
	case "p", "prev":
		s.coord.PrevPage()
	case "offset":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("offset: %q is not a number", arg)
		}
		s.coord.SetOffset(n)
	case "limit":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("limit: %q is not a number", arg)
		}
		s.coord.SetLimit(n)
	case "sort":
		key, ok := ParseSortKey(arg)
		if !ok {
			return false, fmt.Errorf("sort: unknown column %q", arg)
		}
		s.sort = s.sort.Toggle(key)
		return false, s.Draw()
	case "reset":
		s.coord.Reset()
	case "r", "refresh":
		s.coord.Refresh()
	default:
		return false, fmt.Errorf("unknown command %q, try help", cmd)
	}
	return false, nil
}

func parseRole(raw string) (models.UserRole, error) {
	if raw == "" || strings.EqualFold(raw, string(models.RoleAll)) {
		return models.RoleAll, nil
	}
	for _, role := range models.Roles {
		if strings.EqualFold(raw, string(role)) {
			raw = string(role)
			break
		}
	}
	if role := models.UserRole(raw); role.Known() {
		return role, nil
	}
	return "", fmt.Errorf("role: unknown role %q", raw)
}
