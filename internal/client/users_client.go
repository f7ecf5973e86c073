package client

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
	"unicode/utf8"

	"github.com/noah-isme/supatable-api/internal/models"
)

const usersQuery = `query Users($input: UsersInput!) {
	users(input: $input) {
		items { id email fullName role createdAt }
		totalCount
	}
}`

// maxErrorBody bounds how much of a non-2xx body ends up in the error message.
const maxErrorBody = 512

// UsersClient calls the users query of a GraphQL endpoint.
type UsersClient struct {
	endpoint string
	http     *http.Client
}

// NewUsersClient builds a client for endpoint. A nil httpClient uses one with the given timeout.
func NewUsersClient(endpoint string, httpClient *http.Client, timeout time.Duration) *UsersClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &UsersClient{endpoint: endpoint, http: httpClient}
}

type usersInput struct {
	Search *string `json:"search,omitempty"`
	Role   string  `json:"role"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type usersPayload struct {
	Data *struct {
		Users *struct {
			Items []struct {
				ID        string `json:"id"`
				Email     string `json:"email"`
				FullName  string `json:"fullName"`
				Role      string `json:"role"`
				CreatedAt string `json:"createdAt"`
			} `json:"items"`
			TotalCount int `json:"totalCount"`
		} `json:"users"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// FetchUsers sends filter to the server and returns the page it answered with. Every failure is
// returned as a single error whose message is fit for display.
func (c *UsersClient) FetchUsers(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	input := usersInput{Role: string(filter.Role), Offset: filter.Offset, Limit: filter.Limit}
	if input.Role == "" {
		input.Role = string(models.RoleAll)
	}
	if filter.Search != "" {
		search := filter.Search
		input.Search = &search
	}

	body, err := json.Marshal(graphQLRequest{
		Query:     usersQuery,
		Variables: map[string]interface{}{"input": input},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(raw))
		text = truncateUTF8(text, maxErrorBody)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, text)
	}

	var payload usersPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Errors) > 0 {
		if msg := payload.Errors[0].Message; msg != "" {
			return nil, errors.New(msg)
		}
		return nil, errors.New("GraphQL error")
	}
	if payload.Data == nil || payload.Data.Users == nil {
		return nil, errors.New("GraphQL error")
	}

	page := &models.UserPage{
		Items:      make([]models.User, 0, len(payload.Data.Users.Items)),
		TotalCount: payload.Data.Users.TotalCount,
	}
	for _, item := range payload.Data.Users.Items {
		createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("decode response: createdAt %q: %w", item.CreatedAt, err)
		}
		page.Items = append(page.Items, models.User{
			ID:        item.ID,
			Email:     item.Email,
			FullName:  item.FullName,
			Role:      models.UserRole(item.Role),
			CreatedAt: createdAt,
		})
	}
	return page, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
