package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supatable-api/internal/models"
)

func serve(t *testing.T, handler http.HandlerFunc) *UsersClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewUsersClient(srv.URL+"/graphql", nil, time.Second)
}

func TestFetchUsersSendsVariablesAndDecodes(t *testing.T) {
	var received struct {
		Query     string `json:"query"`
		Variables struct {
			Input map[string]interface{} `json:"input"`
		} `json:"variables"`
	}
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"data":{"users":{"items":[{"id":"2","email":"alice@x.com","fullName":"Alice Johnson","role":"User","createdAt":"2026-02-02T01:00:00Z"}],"totalCount":4}}}`))
	})

	page, err := c.FetchUsers(context.Background(), models.UserFilter{Search: "alice", Role: models.RoleUser, Offset: 20, Limit: 10})
	require.NoError(t, err)

	assert.Contains(t, received.Query, "users(input: $input)")
	assert.Equal(t, map[string]interface{}{"search": "alice", "role": "User", "offset": float64(20), "limit": float64(10)}, received.Variables.Input)

	assert.Equal(t, 4, page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "alice@x.com", page.Items[0].Email)
	assert.Equal(t, models.RoleUser, page.Items[0].Role)
	assert.True(t, page.Items[0].CreatedAt.Equal(time.Date(2026, 2, 2, 1, 0, 0, 0, time.UTC)))
}

func TestFetchUsersOmitsEmptySearch(t *testing.T) {
	var input map[string]interface{}
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Variables struct {
				Input map[string]interface{} `json:"input"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		input = body.Variables.Input
		_, _ = w.Write([]byte(`{"data":{"users":{"items":[],"totalCount":0}}}`))
	})

	page, err := c.FetchUsers(context.Background(), models.DefaultUserFilter())
	require.NoError(t, err)
	assert.NotContains(t, input, "search")
	assert.Equal(t, "All", input["role"])
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestFetchUsersErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "non-2xx", status: http.StatusBadGateway, body: "upstream down\n", message: "HTTP 502: upstream down"},
		{name: "graphql error", status: http.StatusOK, body: `{"errors":[{"message":"failed to load users"}],"data":null}`, message: "failed to load users"},
		{name: "graphql error without message", status: http.StatusOK, body: `{"errors":[{}]}`, message: "GraphQL error"},
		{name: "missing data", status: http.StatusOK, body: `{"data":null}`, message: "GraphQL error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			page, err := c.FetchUsers(context.Background(), models.DefaultUserFilter())
			require.Error(t, err)
			assert.Nil(t, page)
			assert.Equal(t, tc.message, err.Error())
		})
	}
}

func TestFetchUsersDecodeFailure(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := c.FetchUsers(context.Background(), models.DefaultUserFilter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestFetchUsersTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewUsersClient(url, nil, time.Second)
	_, err := c.FetchUsers(context.Background(), models.DefaultUserFilter())
	require.Error(t, err)
}

func TestFetchUsersErrorBodyKeepsValidUTF8(t *testing.T) {
	body := strings.Repeat("a", maxErrorBody-1) + "é" + "tail"
	c := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(body))
	})

	_, err := c.FetchUsers(context.Background(), models.DefaultUserFilter())
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Equal(t, "HTTP 500: "+strings.Repeat("a", maxErrorBody-1), err.Error())
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "short", truncateUTF8("short", 10))
	assert.Equal(t, "ab", truncateUTF8("abé", 3))
	assert.Equal(t, "abé", truncateUTF8("abéd", 4))
	assert.Equal(t, "", truncateUTF8("日本", 2))
}
