package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/engview/internal/formats"
	"github.com/morozRed/engview/internal/metadata"
	"github.com/morozRed/engview/internal/queue"
	"github.com/morozRed/engview/internal/scanner"
)

const (
	detContent = "4 NATUR\nRPM P-Av Torque\n$1\n2000 20.0 80.0\n3000 30.0 90.0\n"
	pouContent = "4 NATUR 0 0 0\nRPM P-Av Torque\n$1\n2000 21.0 81.0\n3000 31.0 91.0\n"
)

type testEnv struct {
	root    string
	store   *metadata.Store
	queue   *queue.Queue
	handler http.Handler
}

func newTestEnv(t *testing.T, files map[string]string) testEnv {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	store, err := metadata.NewStore(filepath.Join(t.TempDir(), ".metadata"), nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	q := queue.New(queue.Options{Metrics: queue.NewMetrics(reg)})
	registry := formats.NewDefaultRegistry(nil)
	sc := scanner.New(scanner.Options{Root: root}, registry, store, q, nil)

	srv := New(Deps{Scanner: sc, Store: store, Queue: q, Gatherer: reg})
	return testEnv{root: root, store: store, queue: q, handler: srv.Router()}
}

func (e testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return errObj["code"].(string)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotNil(t, body["queue"])
}

func TestListProjects(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"Vesta 1.6 IM.det": detContent,
		"Vesta 1.6 IM.pou": pouContent,
		"BMW M42.det":      detContent,
	})
	_, err := env.store.UpdateManual("bmw-m42", metadata.ManualMetadata{}, strPtr("Track BMW"))
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].([]any)
	require.Len(t, data, 2)

	byID := map[string]map[string]any{}
	for _, item := range data {
		m := item.(map[string]any)
		byID[m["id"].(string)] = m
	}
	assert.Equal(t, "pou-merged", byID["vesta-16-im"]["format"])
	assert.Equal(t, "Track BMW", byID["bmw-m42"]["displayName"])
	assert.NotEmpty(t, byID["bmw-m42"]["fileSizeFormatted"])

	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["total"])
	dir := meta["directory"].(map[string]any)
	assert.Equal(t, float64(3), dir["totalFiles"])
}

func TestListProjectsMissingDirectory(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.RemoveAll(env.root))

	rec := env.do(t, http.MethodGet, "/api/projects", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeDirectoryNotFound, errorCode(t, rec))
}

func TestGetProject(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"Vesta 1.6 IM.det": detContent,
		"Vesta 1.6 IM.pou": pouContent,
	})

	rec := env.do(t, http.MethodGet, "/api/project/vesta-16-im", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "pou-merged", data["format"])
	calcs := data["calculations"].([]any)
	require.Len(t, calcs, 1)
	summary := calcs[0].(map[string]any)["metadata"].(map[string]any)
	assert.Equal(t, float64(2), summary["totalPoints"])
	assert.Equal(t, map[string]any{"min": 2000.0, "max": 3000.0}, summary["rpmRange"])

	point := calcs[0].(map[string]any)["dataPoints"].([]any)[0].(map[string]any)
	assert.Equal(t, 21.0, point["P-Av"])
}

func TestGetProjectErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/project/Not_Valid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidProjectID, errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/api/project/absent", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeProjectNotFound, errorCode(t, rec))
}

func TestMetadataLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/projects/vesta/metadata", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeMetadataNotFound, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/projects/vesta/metadata",
		`{"displayName":"Vesta Cup","manual":{"client":"acme","tags":["race","race"," 2024 "],"status":"completed"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["created"])
	doc := body["metadata"].(map[string]any)
	assert.Equal(t, "Vesta Cup", doc["displayName"])
	manual := doc["manual"].(map[string]any)
	assert.Equal(t, []any{"race", "2024"}, manual["tags"])

	rec = env.do(t, http.MethodPost, "/api/projects/vesta/metadata", `{"manual":{"notes":"rebuilt"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["created"])
	doc = body["metadata"].(map[string]any)
	assert.Equal(t, "Vesta Cup", doc["displayName"], "omitted display name is kept")
	assert.Equal(t, "active", doc["manual"].(map[string]any)["status"])

	rec = env.do(t, http.MethodGet, "/api/projects/vesta/metadata", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/projects/vesta/metadata", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/projects/vesta/metadata", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveMetadataValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	cases := map[string]string{
		"bad status":     `{"manual":{"status":"lost"}}`,
		"missing manual": `{"displayName":"x"}`,
		"tags not array": `{"manual":{"tags":"race"}}`,
		"unknown field":  `{"manual":{},"owner":"me"}`,
		"not json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/projects/vesta/metadata", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, CodeValidation, errorCode(t, rec))
		})
	}
	assert.False(t, env.store.Has("vesta"))
}

func TestQueueStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/queue/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, map[string]any{"total": 0.0, "pending": 0.0, "completed": 0.0, "isProcessing": false}, data)
}

func TestQueueStatusWithoutQueue(t *testing.T) {
	srv := New(Deps{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeQueueStatus, errorCode(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, map[string]string{"A.prt": "Number of cylinders : 4\n"})

	// Listing queues the stale narrative file.
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/projects", "").Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.queue.WaitIdle(ctx))
	assert.True(t, env.store.Has("a"))

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "engview_extraction_enqueued_total")
}

func strPtr(s string) *string { return &s }
