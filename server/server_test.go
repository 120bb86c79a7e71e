package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	swtest "github.com/teranos/softwaremap/internal/testing"
	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/pulse/schedule"
	"github.com/teranos/softwaremap/reconcile"
	"github.com/teranos/softwaremap/store"
)

func setupServer(t *testing.T) (*Server, *store.Store, *schedule.RunStore) {
	t.Helper()
	db := swtest.CreateTestDB(t)
	st := store.New(db)
	runs := schedule.NewRunStore(db)
	ctx := context.Background()

	for _, e := range []kb.Entity{{ID: "Q42", Label: "Spacewar!"}, {ID: "Q43", Label: "Tennis for Two"}} {
		_, err := st.UpsertEntity(ctx, e)
		require.NoError(t, err)
	}
	require.NoError(t, st.SetBlurb(ctx, "Q42", "Early space combat game.", kb.BlurbManual))
	require.NoError(t, st.SetCanonicalDate(ctx, "Q42", &reconcile.CanonicalDate{
		EntityID: "Q42", Date: time.Date(1962, 4, 1, 0, 0, 0, 0, time.UTC), Kind: kb.KindPublication,
	}))
	require.NoError(t, st.SetCuration(ctx, "Q43", false))

	return New(st, runs, zap.NewNop().Sugar()), st, runs
}

func get(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := setupServer(t)
	rec, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestHandleEntity(t *testing.T) {
	s, _, _ := setupServer(t)

	rec, body := get(t, s, "/api/entity?id=Q42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Q42", body["entityId"])
	assert.Equal(t, "Spacewar!", body["label"])
	assert.Equal(t, true, body["curationEnabled"])
	assert.Equal(t, "1962-04-01", body["canonicalDate"])
	assert.Equal(t, "publication", body["canonicalDateKind"])
	assert.Equal(t, "manual", body["blurbSource"])
}

func TestHandleEntity_Errors(t *testing.T) {
	s, _, _ := setupServer(t)

	rec, body := get(t, s, "/api/entity?id=Q999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "Q999")

	rec, _ = get(t, s, "/api/entity?id=spacewar")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(t, s, "/api/entity")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	post := httptest.NewRecorder()
	s.Handler().ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/api/entity?id=Q42", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, post.Code)
}

func TestHandleNode_AcceptsURI(t *testing.T) {
	s, _, _ := setupServer(t)
	rec, body := get(t, s, "/node?uri=http://www.wikidata.org/entity/Q42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Q42", body["entityId"])
}

func TestHandleEntities(t *testing.T) {
	s, _, _ := setupServer(t)

	_, body := get(t, s, "/api/entities")
	assert.Equal(t, float64(1), body["count"], "disabled Q43 is hidden")

	_, body = get(t, s, "/api/entities?all=true")
	assert.Equal(t, float64(2), body["count"])

	rec, _ := get(t, s, "/api/entities?all=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStats(t *testing.T) {
	s, _, _ := setupServer(t)
	rec, body := get(t, s, "/api/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["entities"])
	assert.Equal(t, float64(1), body["manual_blurbs"])
}

func TestHandleRuns(t *testing.T) {
	s, _, runs := setupServer(t)
	ctx := context.Background()
	run, err := runs.StartRun(ctx, "dates")
	require.NoError(t, err)
	require.NoError(t, runs.FinishRun(ctx, run, schedule.RunStatusCompleted, schedule.Counts{Processed: 5}, nil))

	rec, body := get(t, s, "/api/runs?task=dates&limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	list := body["runs"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "completed", list[0].(map[string]interface{})["status"])

	rec, _ = get(t, s, "/api/runs?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s, _, _ := setupServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
