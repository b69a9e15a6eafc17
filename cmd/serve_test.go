package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/lock"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/pipeline"
)

const acmeBody = "Account: Acme Inc\nOpportunity: Website Revamp\nPlease send the contract by 5/1.\nBudget is $5,000."

func newTestEnv(t *testing.T) *intakeEnv {
	t.Helper()
	env, err := initEnv(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func postMessage(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/messages", map[string]any{
		"from":      map[string]string{"email": "jane@acme.com", "name": "Jane Doe"},
		"to":        []string{"sales@example.com"},
		"subject":   "Website Revamp",
		"text_body": acmeBody,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	return resp["id"]
}

func TestHealthEndpoint(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "salesforce")
}

func TestCreateMessage_Validation(t *testing.T) {
	h := newRouter(newTestEnv(t))

	rr := do(t, h, http.MethodPost, "/messages", "not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/messages", map[string]any{"subject": "no sender"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "from.email is required")
}

func TestCreateAndGetMessage(t *testing.T) {
	h := newRouter(newTestEnv(t))
	id := postMessage(t, h)

	rr := do(t, h, http.MethodGet, "/messages/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var msg model.InboundMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	assert.Equal(t, "jane@acme.com", msg.From.Email)
	assert.False(t, msg.Processed)

	rr = do(t, h, http.MethodGet, "/messages/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProcessMessageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env)
	id := postMessage(t, h)

	rr := do(t, h, http.MethodPost, "/messages/"+id+"/process", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		ID     string           `json:"id"`
		Routed bool             `json:"routed"`
		Audit  model.AuditTrail `json:"audit"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Routed)
	require.NotEmpty(t, resp.Audit)
	assert.Equal(t, "Processing started", resp.Audit[0].Message)

	msg, err := env.Store.GetMessage(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, msg.Processed)
	assert.NotEmpty(t, msg.Linkage.OrganizationID)

	// A second call is a no-op.
	rr = do(t, h, http.MethodPost, "/messages/"+id+"/process", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Routed)

	rr = do(t, h, http.MethodPost, "/messages/missing/process", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuditEndpoint(t *testing.T) {
	h := newRouter(newTestEnv(t))
	id := postMessage(t, h)

	rr := do(t, h, http.MethodGet, "/messages/"+id+"/audit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	do(t, h, http.MethodPost, "/messages/"+id+"/process", nil)

	rr = do(t, h, http.MethodGet, "/messages/"+id+"/audit", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var trail model.AuditTrail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &trail))
	require.NotEmpty(t, trail)
	assert.Equal(t, model.AuditSuccess, trail[len(trail)-1].Status)
}

func TestBatchEndpoint(t *testing.T) {
	h := newRouter(newTestEnv(t))
	postMessage(t, h)

	rr := do(t, h, http.MethodPost, "/batch", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res pipeline.BatchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Errors)
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return nil, lock.ErrHeld
}

func TestBatchEndpoint_LockHeld(t *testing.T) {
	env := newTestEnv(t)
	env.Pipeline = pipeline.New(env.Store, env.Settings, pipeline.WithLocker(heldLocker{}))
	h := newRouter(env)

	rr := do(t, h, http.MethodPost, "/batch", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodOptions, "/messages", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestPollLoop_ProcessesPending(t *testing.T) {
	env := newTestEnv(t)
	id := postMessage(t, newRouter(env))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	pollLoop(ctx, env, 20*time.Millisecond)

	msg, err := env.Store.GetMessage(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, msg.Processed)
}
