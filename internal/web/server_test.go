package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/internal/action"
	internaldb "github.com/atelierhq/atelier/internal/db"
	"github.com/atelierhq/atelier/internal/engine"
	"github.com/atelierhq/atelier/internal/provider"
	"github.com/atelierhq/atelier/internal/workspace"
)

func jsonDecode(resp *http.Response, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

type stubExecutor struct {
	batches [][]action.Action
}

func (s *stubExecutor) Execute(_ context.Context, batch []action.Action) []action.Result {
	s.batches = append(s.batches, batch)
	results := make([]action.Result, 0, len(batch))
	for _, a := range batch {
		results = append(results, action.Result{ActionID: a.ID, Success: true})
	}
	return results
}

func newTestServer(t *testing.T, invoker provider.Invoker) (*Server, *workspace.Store, *stubExecutor) {
	t.Helper()
	database, err := internaldb.Open(filepath.Join(t.TempDir(), "atelier.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	store := workspace.NewStore(database)
	eng := engine.New(store, workspace.NewLocker(), invoker, engine.Config{Model: "gpt-5"})
	exec := &stubExecutor{}
	return NewServer(eng, store, exec), store, exec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, provider.NewScripted("scripted"))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGenerateEndpointGreeting(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, provider.NewScripted("scripted"))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	body := `{"workspaceId": "ws-1", "message": "hey"}`
	resp, err := http.Post(ts.URL+"/api/agent/generate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out generateResponse
	require.NoError(t, jsonDecode(resp, &out))
	assert.Equal(t, "GREETING", out.Intent)
	assert.Equal(t, "discussion", out.Mode)
	assert.False(t, out.ShouldModifyFiles)
	assert.NotEmpty(t, out.Reply)
	assert.Zero(t, out.Cost)
}

func TestGenerateEndpointValidation(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, provider.NewScripted("scripted"))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	for _, body := range []string{`{}`, `not json`, `{"workspaceId": "ws-1"}`} {
		resp, err := http.Post(ts.URL+"/api/agent/generate", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
	}
}

func TestGenerateEndpointProviderFailure(t *testing.T) {
	t.Parallel()

	// Script errors for every retry attempt so the chain exhausts.
	srv, _, _ := newTestServer(t, provider.NewChain(provider.ChainConfig{
		RetryMaxAttempts:       1,
		RetryBackoffMultiplier: 1.0,
	}, provider.NewScripted("down")))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	body := `{"workspaceId": "ws-1", "message": "why does the deploy step run twice?"}`
	resp, err := http.Post(ts.URL+"/api/agent/generate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestExecuteEndpointDispatchesBatch(t *testing.T) {
	t.Parallel()

	srv, _, exec := newTestServer(t, provider.NewScripted("scripted"))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	body := `{"actions": [{"type": "write_file", "id": "a1", "path": "x.ts", "content": "y", "mode": "create"}]}`
	resp, err := http.Post(ts.URL+"/api/agent/execute", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out executeResponse
	require.NoError(t, jsonDecode(resp, &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "a1", out.Results[0].ActionID)
	require.Len(t, exec.batches, 1)
}

func TestWorkspaceEndpoint(t *testing.T) {
	t.Parallel()

	srv, store, _ := newTestServer(t, provider.NewScripted("scripted"))
	require.NoError(t, store.Create(context.Background(), "ws-1", 42))

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/workspaces/ws-1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out workspaceResponse
	require.NoError(t, jsonDecode(resp, &out))
	assert.Equal(t, "ws-1", out.ID)
	assert.Equal(t, 42, out.Credits)
	assert.Equal(t, "none", out.PlanStatus)

	missing, err := http.Get(ts.URL + "/api/workspaces/nope")
	require.NoError(t, err)
	_ = missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
