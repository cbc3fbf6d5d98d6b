package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"demo-ingest/internal/config"
	"demo-ingest/internal/domain"
	"demo-ingest/internal/middleware"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/service"
	"demo-ingest/internal/testhelpers"
	"demo-ingest/internal/validation"
	"demo-ingest/internal/workqueue"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

type fakeQueue struct {
	mu    sync.Mutex
	tasks []workqueue.Task
}

func (q *fakeQueue) Submit(task workqueue.Task, queueName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

// runAll executes queued tasks in order, including any they enqueue.
func (q *fakeQueue) runAll(t *testing.T) {
	t.Helper()
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		require.NoError(t, task.Execute(context.Background()), task.Name())
	}
}

type fakeParser struct{}

func (fakeParser) CheckHealth(context.Context) error                { return nil }
func (fakeParser) UploadDemo(context.Context, string, string) error { return nil }

type testServer struct {
	handler http.Handler
	queue   *fakeQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sqlDB, queries := testhelpers.NewTestQueries(t)
	logger := zerolog.Nop()
	cfg := &config.Config{AppEnv: config.EnvTesting, IngestAPIKey: testAPIKey, DemoDir: t.TempDir()}

	jobRepo := repository.NewJobRepository(sqlDB, queries, logger)
	matchRepo := repository.NewMatchRepository(sqlDB, queries, logger)
	playerRepo := repository.NewPlayerRepository(sqlDB, queries, logger)
	eventRepo := repository.NewEventRepository(sqlDB, queries, logger)
	summaryRepo := repository.NewSummaryRepository(sqlDB, queries, logger)
	groupRepo := repository.NewGroupRepository(sqlDB, queries, logger)
	leaderboardRepo := repository.NewLeaderboardRepository(sqlDB, queries, logger)

	queue := &fakeQueue{}
	v := validation.New()
	aggregator, err := service.NewAggregator(cfg, jobRepo, matchRepo, eventRepo, summaryRepo, queue, logger)
	require.NoError(t, err)
	tracker := service.NewJobTracker(jobRepo, aggregator, queue, logger)

	s := NewServer(
		cfg,
		tracker,
		service.NewRegistry(jobRepo, matchRepo, playerRepo, tracker, v, cfg, logger),
		service.NewIngestor(jobRepo, eventRepo, v, logger),
		service.NewOrchestrator(cfg, tracker, fakeParser{}, queue, logger),
		aggregator,
		service.NewLeaderboardCalculator(groupRepo, summaryRepo, leaderboardRepo, logger),
		service.NewGroupService(groupRepo, logger),
		v,
		logger,
	)
	return &testServer{handler: s.Router(), queue: queue}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (ts *testServer) submitDemo(t *testing.T) string {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "match.dem")
	require.NoError(t, err)
	_, err = fw.Write([]byte("HL2DEMO"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/demos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	jobID, _ := decode(t, rec)["job_id"].(string)
	require.NotEmpty(t, jobID)
	ts.queue.runAll(t)
	return jobID
}

func matchBody() map[string]any {
	var players []map[string]any
	for _, p := range testhelpers.Roster() {
		players = append(players, map[string]any{"steam_id": p.SteamID, "name": p.Name, "team": string(p.Team)})
	}
	return map[string]any{
		"map":                "de_dust2",
		"winning_team_score": 16,
		"losing_team_score":  14,
		"match_type":         "faceit",
		"total_rounds":       30,
		"playback_ticks":     192000,
		"players":            players,
	}
}

func fights() []domain.GunfightEvent {
	p := testhelpers.SteamID
	return []domain.GunfightEvent{
		testhelpers.Kill(1, 100, p(1), "T", p(6), "CT"),
		testhelpers.Kill(1, 200, p(7), "CT", p(2), "T"),
		testhelpers.Kill(1, 300, p(3), "T", p(7), "CT"),
	}
}

func TestUnauthenticatedRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "demo_ingest_")
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/anything", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngestionFlow(t *testing.T) {
	ts := newTestServer(t)
	jobID := ts.submitDemo(t)

	rec := ts.do(t, http.MethodPost, "/job/callback/progress", map[string]any{
		"job_id": jobID, "status": "processing", "progress": 40, "current_step": "Parsing demo",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/job/"+jobID+"/match", matchBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "de_dust2", decode(t, rec)["map"])

	path := "/job/" + jobID + "/event/gunfight"
	rec = ts.do(t, http.MethodPost, path, map[string]any{"data": fights(), "batch_index": 1, "total_batches": 1, "is_last": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, jobID, resp["job_id"])
	assert.Equal(t, "gunfight", resp["event_name"])
	assert.EqualValues(t, 3, resp["inserted"])
	assert.EqualValues(t, 0, resp["duplicates"])

	// a bare array is a single batch; the same records are all duplicates
	rec = ts.do(t, http.MethodPost, path, fights())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, decode(t, rec)["duplicates"])

	rec = ts.do(t, http.MethodPost, "/job/"+jobID+"/event/round", []domain.RoundEvent{testhelpers.RoundEnd(1, 400, "T")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/job/callback/completion", map[string]any{"job_id": jobID, "status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	ts.queue.runAll(t)

	rec = ts.do(t, http.MethodGet, "/job/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode(t, rec)
	assert.Equal(t, "completed", job["status"])
	assert.EqualValues(t, 100, job["progress_percent"])
	assert.Len(t, job["batches"], len(domain.EventNames))

	rec = ts.do(t, http.MethodPost, path, fights())
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/job/callback/completion", map[string]any{"job_id": jobID, "status": "failed", "error_message": "late"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"ignored":true}`, rec.Body.String())
}

func TestIngestEvents_Errors(t *testing.T) {
	ts := newTestServer(t)
	jobID := ts.submitDemo(t)

	t.Run("unknown event name", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/job/"+jobID+"/event/bomb", fights())
		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, false, resp["success"])
		assert.Contains(t, resp["error"], "round, gunfight, grenade, damage")
	})

	t.Run("invalid record names the field", func(t *testing.T) {
		bad := fights()
		bad[2].Player2.HPStart = -1
		rec := ts.do(t, http.MethodPost, "/job/"+jobID+"/event/gunfight", bad)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []any{"data[2].player_2.hp_start"}, decode(t, rec)["fields"])
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/job/"+jobID+"/event/gunfight", `{"data": [`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("envelope without data", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/job/"+jobID+"/event/gunfight", `{"batch_index": 1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("inconsistent envelope", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/job/"+jobID+"/event/gunfight",
			map[string]any{"data": fights(), "batch_index": 3, "total_batches": 2})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/job/not-a-job/event/gunfight", fights())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCallbacks(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body any
		code int
		want string
	}{
		{"progress for unknown job", "/job/callback/progress", map[string]any{"job_id": "ghost", "status": "processing", "progress": 10}, http.StatusOK, `{"success":true,"ignored":true}`},
		{"completion for unknown job", "/job/callback/completion", map[string]any{"job_id": "ghost", "status": "completed"}, http.StatusOK, `{"success":true,"ignored":true}`},
		{"progress without job id", "/job/callback/progress", map[string]any{"status": "processing"}, http.StatusBadRequest, ""},
		{"progress with bad status", "/job/callback/progress", map[string]any{"job_id": "ghost", "status": "parsing"}, http.StatusBadRequest, ""},
		{"completion with non-terminal status", "/job/callback/completion", map[string]any{"job_id": "ghost", "status": "processing"}, http.StatusBadRequest, ""},
		{"empty body", "/job/callback/progress", "", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.want != "" {
				assert.JSONEq(t, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRegisterMatch_Errors(t *testing.T) {
	ts := newTestServer(t)
	jobID := ts.submitDemo(t)

	bad := matchBody()
	bad["map"] = "de_narnia"
	rec := ts.do(t, http.MethodPost, "/job/"+jobID+"/match", bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["fields"], "map")

	rec = ts.do(t, http.MethodPost, "/job/missing/match", matchBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/job/"+jobID+"/match", matchBody())
	require.Equal(t, http.StatusOK, rec.Code)

	swapped := matchBody()
	players := swapped["players"].([]map[string]any)
	players[0]["team"] = "B"
	rec = ts.do(t, http.MethodPost, "/job/"+jobID+"/match", swapped)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitDemo_RequiresFilePart(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no demo here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/demos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/demos", `{"file":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReprocessMatch(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/matches/abc/reprocess", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/matches/999/reprocess", nil).Code)

	jobID := ts.submitDemo(t)
	job := decode(t, ts.do(t, http.MethodGet, "/job/"+jobID, nil))
	matchID := int64(job["match_id"].(float64))

	rec := ts.do(t, http.MethodPost, "/matches/"+strconv.FormatInt(matchID, 10)+"/reprocess", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, ts.queue.tasks, 1)
}

func TestGroupsAndLeaderboards(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/groups", map[string]any{"name": "Vitality"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	groupID, _ := decode(t, rec)["id"].(string)
	require.NotEmpty(t, groupID)

	rec = ts.do(t, http.MethodPost, "/groups", map[string]any{"name": "Vitality"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/groups", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/groups/"+groupID+"/members", map[string]any{
		"steam_ids": []string{testhelpers.SteamID(1), testhelpers.SteamID(2), testhelpers.SteamID(1)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["added"])

	rec = ts.do(t, http.MethodGet, "/groups/"+groupID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["members"], 2)

	rec = ts.do(t, http.MethodGet, "/groups/"+groupID+"/leaderboards/aim?window=30d", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lb := decode(t, rec)
	assert.Equal(t, "30d", lb["window"])
	assert.Empty(t, lb["entries"])

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/groups/"+groupID+"/leaderboards/aim?window=1y", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/groups/"+groupID+"/leaderboards/luck", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/groups/nope/leaderboards/aim", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/groups/nope/members", map[string]any{"steam_ids": []string{"1"}}).Code)
}
