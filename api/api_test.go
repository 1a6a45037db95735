package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aybykovskii/schedule-bot/db"
	"github.com/aybykovskii/schedule-bot/export"
	"github.com/aybykovskii/schedule-bot/models"
	"github.com/aybykovskii/schedule-bot/service"
)

// fakeCalendar всегда успешен, идентификаторы детерминированы
type fakeCalendar struct{}

func (fakeCalendar) CreateEvent(_ context.Context, e *models.Event, _ string) (string, error) {
	return fmt.Sprintf("g-%d", e.ID), nil
}
func (fakeCalendar) UpdateEvent(context.Context, *models.Event) error { return nil }
func (fakeCalendar) DeleteEvent(context.Context, string) error        { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.InitSchema())
	t.Cleanup(func() { _ = database.Close() })

	log := zap.NewNop()
	settings := service.Settings{StartHour: 9, EndHour: 19, Location: time.UTC}
	events := service.NewEvents(db.NewEventStore(database), fakeCalendar{}, settings, log)
	drafts := service.NewDrafts(db.NewDraftStore(database), events, log)

	srv := httptest.NewServer(New(events, drafts, export.New(time.UTC), log).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDraftFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/drafts", map[string]any{
		"userId": 1,
		"period": "weekly",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/drafts/1", map[string]any{"date": "01.09.2024"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/drafts/1", map[string]any{"hour": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/drafts/1/commit", map[string]any{
		"name": "Алиса",
		"tg":   "@alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[struct {
		Event       eventJSON `json:"event"`
		SyncPending bool      `json:"syncPending"`
	}](t, resp)

	assert.False(t, result.SyncPending)
	assert.Equal(t, "01.09.2024", result.Event.Date)
	assert.Equal(t, "weekly", result.Event.Period)
	assert.NotEmpty(t, result.Event.GoogleEventID)

	// черновик удалён после фиксации
	resp = doJSON(t, http.MethodGet, srv.URL+"/drafts/1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// занятые часы видят новую серию на любом вторнике
	resp = doJSON(t, http.MethodGet, srv.URL+"/availability/busy?date=01.16.2024&period=once", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int{10}, decodeBody[[]int](t, resp))
}

func TestEventNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/events/404", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBadPeriodRejected(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/availability/busy?date=01.16.2024&period=daily", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportICS(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/export.ics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
}
