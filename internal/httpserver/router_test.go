package httpserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"todo-api/internal/handler"
	"todo-api/internal/httpserver"
	"todo-api/internal/model"
	"todo-api/internal/repository"
	"todo-api/internal/service/task"
	"todo-api/internal/testutil"
	"todo-api/pkg/apperr"
	"todo-api/pkg/db"
	"todo-api/pkg/mq"
	"todo-api/pkg/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router *gin.Engine
	conn   *db.DB
}

func newServer(t *testing.T) *server {
	t.Helper()
	return newServerWithLogger(t, zap.NewNop())
}

func newServerWithLogger(t *testing.T, logger *zap.Logger) *server {
	t.Helper()

	conn := testutil.NewTestDB(t)
	repo := repository.NewTaskRepository(conn, logger)
	clock := func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	svc := task.NewService(repo, mq.NopPublisher{}, logger, task.WithClock(clock))

	return &server{
		router: httpserver.NewRouter(handler.NewTaskHandler(svc, logger), logger, conn, mq.NopPublisher{}),
		conn:   conn,
	}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	assert.Equal(t, status, w.Code)
	body := decode[errorResponse](t, w)
	assert.False(t, body.Success)
	assert.Equal(t, msg, body.Error)
}

func TestBanner(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "Todo API is running successfully!", body["message"])
	assert.Equal(t, httpserver.Version, body["version"])
	assert.Contains(t, body["endpoints"], "GET /tasks/due-soon")
}

func TestCreateThenGet(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/tasks", `{"title":"Buy milk","due_date":"2099-01-01"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[model.Task](t, w)

	assert.Positive(t, created.ID)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Nil(t, created.Description)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, "2099-01-01", *created.DueDate)
	assert.False(t, created.Completed)

	w = s.do(t, http.MethodGet, "/tasks/"+itoa(created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[model.Task](t, w)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.DueDate, got.DueDate)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "empty title", body: `{"title":""}`, msg: "Title is required"},
		{name: "missing title", body: `{"description":"no title"}`, msg: "Title is required"},
		{name: "bad due date", body: `{"title":"x","due_date":"someday"}`, msg: "Invalid due_date, expected YYYY-MM-DD or an RFC 3339 timestamp"},
		{name: "malformed json", body: `{"title":`, msg: "Invalid request body"},
		{name: "wrong type", body: `{"title":42}`, msg: "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)

			w := s.do(t, http.MethodPost, "/tasks", tt.body)
			assertError(t, w, http.StatusBadRequest, tt.msg)

			w = s.do(t, http.MethodGet, "/tasks", "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, decode[[]model.Task](t, w))
		})
	}
}

func TestListTasks(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	s.do(t, http.MethodPost, "/tasks", `{"title":"open","due_date":"2026-10-21"}`)
	done := decode[model.Task](t, s.do(t, http.MethodPost, "/tasks", `{"title":"done"}`))
	w = s.do(t, http.MethodPut, "/tasks/"+itoa(done.ID), `{"completed":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	all := decode[[]model.Task](t, s.do(t, http.MethodGet, "/tasks", ""))
	assert.Len(t, all, 2)

	completed := decode[[]model.Task](t, s.do(t, http.MethodGet, "/tasks?completed=true", ""))
	require.Len(t, completed, 1)
	assert.Equal(t, "done", completed[0].Title)

	dueSoon := decode[[]model.Task](t, s.do(t, http.MethodGet, "/tasks?due_soon=true", ""))
	require.Len(t, dueSoon, 1)
	assert.Equal(t, "open", dueSoon[0].Title)

	assertError(t, s.do(t, http.MethodGet, "/tasks?completed=maybe", ""), http.StatusBadRequest, "Invalid completed filter")
}

func TestDueSoonRoute(t *testing.T) {
	s := newServer(t)

	for _, body := range []string{
		`{"title":"week","due_date":"2026-10-26"}`,
		`{"title":"tomorrow","due_date":"2026-10-20"}`,
		`{"title":"far","due_date":"2099-01-01"}`,
		`{"title":"past","due_date":"2026-10-01"}`,
		`{"title":"none"}`,
	} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/tasks", body).Code)
	}

	w := s.do(t, http.MethodGet, "/tasks/due-soon", "")
	require.Equal(t, http.StatusOK, w.Code)

	tasks := decode[[]model.Task](t, w)
	require.Len(t, tasks, 2)
	assert.Equal(t, "tomorrow", tasks[0].Title)
	assert.Equal(t, "week", tasks[1].Title)
}

func TestUpdateTask(t *testing.T) {
	s := newServer(t)
	created := decode[model.Task](t, s.do(t, http.MethodPost, "/tasks", `{"title":"draft","description":"d"}`))

	w := s.do(t, http.MethodPut, "/tasks/"+itoa(created.ID), `{"title":"final","completed":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	updated := decode[model.Task](t, w)
	assert.Equal(t, "final", updated.Title)
	assert.True(t, updated.Completed)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "d", *updated.Description)
}

func TestUpdateErrors(t *testing.T) {
	s := newServer(t)
	created := decode[model.Task](t, s.do(t, http.MethodPost, "/tasks", `{"title":"keep"}`))
	path := "/tasks/" + itoa(created.ID)

	assertError(t, s.do(t, http.MethodPut, "/tasks/9999", `{"completed":true}`), http.StatusNotFound, "Task not found")
	assertError(t, s.do(t, http.MethodPut, path, `{"title":"  "}`), http.StatusBadRequest, "Title cannot be empty")
	assertError(t, s.do(t, http.MethodPut, path, `{}`), http.StatusBadRequest, "No fields to update")
	assertError(t, s.do(t, http.MethodPut, path, `not json`), http.StatusBadRequest, "Invalid request body")

	got := decode[model.Task](t, s.do(t, http.MethodGet, path, ""))
	assert.Equal(t, "keep", got.Title)
	assert.False(t, got.Completed)
}

func TestDeleteTwice(t *testing.T) {
	s := newServer(t)
	created := decode[model.Task](t, s.do(t, http.MethodPost, "/tasks", `{"title":"temp"}`))
	path := "/tasks/" + itoa(created.ID)

	w := s.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Task deleted successfully", body["message"])
	assert.EqualValues(t, created.ID, body["id"])

	assertError(t, s.do(t, http.MethodDelete, path, ""), http.StatusNotFound, "Task not found")
	assertError(t, s.do(t, http.MethodGet, path, ""), http.StatusNotFound, "Task not found")
}

func TestInvalidTaskID(t *testing.T) {
	s := newServer(t)

	for _, id := range []string{"abc", "0", "-3", "1.5"} {
		t.Run(id, func(t *testing.T) {
			assertError(t, s.do(t, http.MethodGet, "/tasks/"+id, ""), http.StatusBadRequest, "Invalid task ID")
			assertError(t, s.do(t, http.MethodPut, "/tasks/"+id, `{"completed":true}`), http.StatusBadRequest, "Invalid task ID")
			assertError(t, s.do(t, http.MethodDelete, "/tasks/"+id, ""), http.StatusBadRequest, "Invalid task ID")
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newServer(t)

	assertError(t, s.do(t, http.MethodGet, "/nope", ""), http.StatusNotFound, "Route not found")
	assertError(t, s.do(t, http.MethodGet, "/tasks/1/extra", ""), http.StatusNotFound, "Route not found")
}

func TestStorageFailureHidesDetails(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := newServerWithLogger(t, zap.New(core))
	require.NoError(t, s.conn.Close())

	assertError(t, s.do(t, http.MethodGet, "/tasks", ""), http.StatusInternalServerError, "Internal server error")

	failures := logs.FilterMessage("Request failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, "storage", fields["kind"])
	assert.Equal(t, apperr.ReasonConnection, fields["reason"])
	assert.Contains(t, fields["error"], "database is closed")

	metricsBody := s.do(t, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metricsBody, `db_errors_total{operation="fetch_many",reason="connection"}`)

	assertError(t, s.do(t, http.MethodPost, "/tasks", `{"title":"x"}`), http.StatusInternalServerError, "Internal server error")

	w := s.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	s := newServer(t)
	s.router.GET("/boom", func(*gin.Context) { panic("boom") })

	assertError(t, s.do(t, http.MethodGet, "/boom", ""), http.StatusInternalServerError, "Internal server error")

	// the server keeps serving
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestHealthAndReadiness(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.do(t, http.MethodGet, "/", "")

	w := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")
}

func TestRequestID(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "req-123")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(trace.HeaderName))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
