package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/uriel/pkg/log"
	"github.com/lemonberrylabs/uriel/pkg/runtime"
	"github.com/lemonberrylabs/uriel/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(runtime.NewEngine(), store.New(), log.Logger{})
}

func do(t *testing.T, srv *Server, method, path, contentType, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := srv.App().Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorStatus(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["status"].(string)
	return s
}

func TestExecuteJSON(t *testing.T) {
	srv := newTestServer(t)
	code, body := do(t, srv, http.MethodPost, "/v1/execute", "application/json", `{"source":"add 1 2 3"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(6), body["result"])
}

func TestExecutePlainSource(t *testing.T) {
	srv := newTestServer(t)
	code, body := do(t, srv, http.MethodPost, "/v1/execute", "text/x-uriel", `get "data:text/plain,hello"`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hello", body["result"])
}

func TestExecuteWithArgs(t *testing.T) {
	srv := newTestServer(t)
	code, body := do(t, srv, http.MethodPost, "/v1/execute", "application/json",
		`{"source":"of size args","args":["a","b","c"]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["result"])
}

func TestExecuteAsMimetype(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/execute?mimetype=text/plain", strings.NewReader("add 2 2"))
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "4", string(raw))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}

func TestExecuteErrors(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/v1/execute", "application/json", `{"source":"add 1\nend"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", errorStatus(body))

	code, body = do(t, srv, http.MethodPost, "/v1/execute", "application/json", `{"source":"exit 3"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, float64(3), body["error"].(map[string]any)["exitCode"])

	code, _ = do(t, srv, http.MethodPost, "/v1/execute", "application/json", `{"source":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestContextResources(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, http.MethodPut, "/v1/context/x", "application/json", `5`)
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, srv, http.MethodGet, "/v1/context/x", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(5), body["value"])

	code, body = do(t, srv, http.MethodPost, "/v1/context/items", "application/json", `"first"`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "first", body["value"])

	code, _ = do(t, srv, http.MethodPut, "/v1/context/cfg", "text/yaml", "name: demo\n")
	require.Equal(t, http.StatusOK, code)
	code, body = do(t, srv, http.MethodGet, "/v1/context/cfg/name", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "demo", body["value"])
	code, _ = do(t, srv, http.MethodGet, "/v1/context/cfg/missing", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = do(t, srv, http.MethodGet, "/v1/context", "", "")
	assert.Equal(t, http.StatusOK, code)
	vars := body["variables"].(map[string]any)
	assert.Contains(t, vars, "x")
	assert.Contains(t, vars, "items")

	code, _ = do(t, srv, http.MethodDelete, "/v1/context/x", "", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, body = do(t, srv, http.MethodGet, "/v1/context/x", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", errorStatus(body))

	// Variables written over HTTP are visible to expressions.
	code, body = do(t, srv, http.MethodPost, "/v1/execute", "application/json", `{"source":"of size items"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["result"])
}

func TestContextRejectsURIs(t *testing.T) {
	srv := newTestServer(t)
	code, _ := do(t, srv, http.MethodGet, "/v1/context/..%2Fetc", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func waitForState(t *testing.T, srv *Server, script, id string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_, body := do(t, srv, http.MethodGet, "/v1/scripts/"+script+"/executions/"+id, "", "")
		if body["state"] != string(store.ExecutionActive) || time.Now().After(deadline) {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScriptExecution(t *testing.T) {
	srv := newTestServer(t)

	code, body := do(t, srv, http.MethodPost, "/v1/scripts?scriptId=largest", "application/json",
		`{"source":"math.max args","description":"largest argument"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "largest", body["name"])

	code, body = do(t, srv, http.MethodPost, "/v1/scripts/largest/executions", "application/json", `{"args":[40, 2]}`)
	require.Equal(t, http.StatusOK, code, body)
	id := body["id"].(string)

	final := waitForState(t, srv, "largest", id)
	assert.Equal(t, string(store.ExecutionSucceeded), final["state"])
	assert.Equal(t, float64(40), final["result"])

	code, body = do(t, srv, http.MethodGet, "/v1/scripts/largest/executions", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["executions"], 1)
}

func TestFailedExecution(t *testing.T) {
	srv := newTestServer(t)
	code, _ := do(t, srv, http.MethodPost, "/v1/scripts?scriptId=broken", "application/json", `{"source":"end"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodPost, "/v1/scripts?scriptId=quits", "application/json", `{"source":"exit 1"}`)
	require.Equal(t, http.StatusOK, code)
	_, body := do(t, srv, http.MethodPost, "/v1/scripts/quits/executions", "", "")
	final := waitForState(t, srv, "quits", body["id"].(string))
	assert.Equal(t, string(store.ExecutionFailed), final["state"])
}

func TestCancelExecution(t *testing.T) {
	srv := newTestServer(t)
	code, _ := do(t, srv, http.MethodPost, "/v1/scripts?scriptId=slow", "application/json", `{"source":"sys.sleep 30"}`)
	require.Equal(t, http.StatusOK, code)

	_, body := do(t, srv, http.MethodPost, "/v1/scripts/slow/executions", "", "")
	id := body["id"].(string)

	// Other requests are served while the execution runs.
	code, body = do(t, srv, http.MethodPost, "/v1/execute", "application/json", `{"source":"add 2 3"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(5), body["result"])
	code, _ = do(t, srv, http.MethodGet, "/v1/context", "", "")
	assert.Equal(t, http.StatusOK, code)
	_, body = do(t, srv, http.MethodGet, "/v1/scripts/slow/executions/"+id, "", "")
	assert.Equal(t, string(store.ExecutionActive), body["state"])

	code, body = do(t, srv, http.MethodPost, "/v1/scripts/slow/executions/"+id+":cancel", "", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(store.ExecutionCancelled), body["state"])

	code, _ = do(t, srv, http.MethodPost, "/v1/scripts/slow/executions/"+id+":cancel", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, srv, http.MethodPost, "/v1/execute", "application/json", `{"source":"add 1 1"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["result"])
}

func TestScriptCRUD(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, http.MethodPost, "/v1/scripts?scriptId=Bad+Name", "application/json", `{"source":"null"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodPost, "/v1/scripts?scriptId=one", "application/json", `{"source":"add 1 1"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, srv, http.MethodPost, "/v1/scripts?scriptId=one", "application/json", `{"source":"add 1 1"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, body := do(t, srv, http.MethodPatch, "/v1/scripts/one", "application/json", `{"source":"add 2 2"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "add 2 2", body["source"])

	code, body = do(t, srv, http.MethodGet, "/v1/scripts", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["scripts"], 1)

	code, _ = do(t, srv, http.MethodDelete, "/v1/scripts/one", "", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, srv, http.MethodGet, "/v1/scripts/one", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Greet.uriel": "of size args",
		"bad.uriel":   "end",
		"notes.txt":   "not a script",
	}
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}

	srv := newTestServer(t)
	require.NoError(t, srv.LoadDir(dir))

	code, body := do(t, srv, http.MethodGet, "/v1/scripts", "", "")
	require.Equal(t, http.StatusOK, code)
	scripts := body["scripts"].([]any)
	require.Len(t, scripts, 1)
	assert.Equal(t, "greet", scripts[0].(map[string]any)["name"])

	assert.Error(t, srv.LoadDir(filepath.Join(dir, "missing")))
}
