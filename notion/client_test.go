package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foomo/notion-mcp/service/vo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorded struct {
	method string
	path   string
	header http.Header
	body   map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, rec recorded)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone()}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		calls = append(calls, rec)
		handler(w, r, rec)
	}))
	t.Cleanup(srv.Close)
	client := New("secret_test",
		ClientWithBaseURL(srv.URL+"/v1/"),
		ClientWithLogger(zaptest.NewLogger(t)),
		ClientWithRetry(3, time.Millisecond),
	)
	return client, &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearch(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		writeJSON(w, http.StatusOK, map[string]any{
			"results":     []any{map[string]any{"id": "p1"}},
			"next_cursor": "cursor-1",
			"has_more":    true,
		})
	})

	resp, err := client.Search(context.Background(), "brand", 0)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.NextCursor)
	assert.Equal(t, "cursor-1", *resp.NextCursor)
	assert.True(t, resp.HasMore)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/v1/search", call.path)
	assert.Equal(t, "Bearer secret_test", call.header.Get("Authorization"))
	assert.Equal(t, DefaultVersion, call.header.Get("Notion-Version"))
	assert.Equal(t, "application/json", call.header.Get("Content-Type"))
	assert.Equal(t, "brand", call.body["query"])
	assert.InDelta(t, DefaultSearchSize, call.body["page_size"], 0)
	assert.Equal(t, map[string]any{"direction": "descending", "timestamp": "last_edited_time"}, call.body["sort"])
}

func TestSearchEmptyResults(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		writeJSON(w, http.StatusOK, map[string]any{"has_more": false, "next_cursor": nil})
	})
	resp, err := client.Search(context.Background(), "", 5)
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Nil(t, resp.NextCursor)
}

func TestGetPageAndChildren(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		switch r.URL.Path {
		case "/v1/pages/p1":
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1", "object": "page"})
		case "/v1/blocks/p1/children":
			writeJSON(w, http.StatusOK, map[string]any{"results": []any{map[string]any{"type": "paragraph"}}})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"code": "object_not_found", "message": "nope"})
		}
	})

	page, err := client.GetPage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "p1", "object": "page"}, page)

	blocks, err := client.GetBlockChildren(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, blocks, 1)

	_, err = client.GetPage(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "object_not_found", apiErr.Code)
	assert.Equal(t, "nope", apiErr.Message)

	assert.Equal(t, http.MethodGet, (*calls)[0].method)
}

func TestGetBlockChildrenWithoutResults(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		writeJSON(w, http.StatusOK, map[string]any{"object": "list"})
	})
	_, err := client.GetBlockChildren(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results")
}

func TestQueryDatabase(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}}})
	})

	filter := map[string]any{"property": "Services", "multi_select": map[string]any{"contains": "A"}}
	pages, err := client.QueryDatabase(context.Background(), "db1", filter, 0)
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	_, err = client.QueryDatabase(context.Background(), "db1", nil, 5)
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/v1/databases/db1/query", (*calls)[0].path)
	assert.InDelta(t, DefaultQuerySize, (*calls)[0].body["page_size"], 0)
	assert.Equal(t, filter, (*calls)[0].body["filter"])
	assert.InDelta(t, 5, (*calls)[1].body["page_size"], 0)
	assert.NotContains(t, (*calls)[1].body, "filter")
}

func TestCreateAndUpdatePage(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "new"})
	})

	props := map[string]any{"Name": map[string]any{"title": []any{}}}
	children := []any{map[string]any{"type": "paragraph"}}
	_, err := client.CreatePage(context.Background(), vo.Parent{Type: vo.ParentTypeDatabase, ID: "db1"}, props, children)
	require.NoError(t, err)
	_, err = client.CreatePage(context.Background(), vo.Parent{Type: vo.ParentTypePage, ID: "p1"}, props, nil)
	require.NoError(t, err)
	_, err = client.UpdatePage(context.Background(), "p1", props)
	require.NoError(t, err)

	require.Len(t, *calls, 3)
	assert.Equal(t, "/v1/pages", (*calls)[0].path)
	assert.Equal(t, map[string]any{"database_id": "db1"}, (*calls)[0].body["parent"])
	assert.Len(t, (*calls)[0].body["children"], 1)
	assert.Equal(t, map[string]any{"page_id": "p1"}, (*calls)[1].body["parent"])
	assert.NotContains(t, (*calls)[1].body, "children")
	assert.Equal(t, http.MethodPatch, (*calls)[2].method)
	assert.Equal(t, "/v1/pages/p1", (*calls)[2].path)
	assert.Contains(t, (*calls)[2].body, "properties")
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		if attempts.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"code": "service_unavailable", "message": "later"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "p1"})
	})

	_, err := client.GetPage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCreatePageRetriesOnlyWhenRateLimited(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		attempts.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]any{"code": "bad_gateway", "message": "upstream"})
	})
	parent := vo.Parent{Type: vo.ParentTypePage, ID: "p1"}

	_, err := client.CreatePage(context.Background(), parent, map[string]any{}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())

	attempts.Store(0)
	throttled, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		if attempts.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"code": "rate_limited", "message": "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "new"})
	})
	_, err = throttled.CreatePage(context.Background(), parent, map[string]any{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		attempts.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": "validation_error", "message": "bad"})
	})

	_, err := client.UpdatePage(context.Background(), "p1", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestValidateConnection(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
	})
	require.NoError(t, client.ValidateConnection(context.Background()))
	assert.InDelta(t, 1, (*calls)[0].body["page_size"], 0)

	unauthorized, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request, rec recorded) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "unauthorized", "message": "API token is invalid."})
	})
	err := unauthorized.ValidateConnection(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "p1"})
	}))
	defer srv.Close()

	client := New("ntn_test", ClientWithBaseURL(srv.URL), ClientWithMetrics(metrics))
	_, err := client.GetPage(context.Background(), "p1")
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.requests.WithLabelValues("get_page", "200")), 0)
}

func TestPageSize(t *testing.T) {
	assert.Equal(t, DefaultSearchSize, pageSize(0, DefaultSearchSize))
	assert.Equal(t, DefaultQuerySize, pageSize(-3, DefaultQuerySize))
	assert.Equal(t, 42, pageSize(42, DefaultSearchSize))
	assert.Equal(t, MaxPageSize, pageSize(500, DefaultSearchSize))
}
