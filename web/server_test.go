// ABOUTME: Tests for the HTTP API
// ABOUTME: Exercises routes, auth, status mapping and the WebSocket feed
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, auth bool) (*httptest.Server, *Hub) {
	t.Helper()
	store, err := db.OpenSQLiteStore(filepath.Join(t.TempDir(), "kith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var ids identity.Provider = identity.Fallback{Default: identity.Static("local")}
	opts := Options{Version: "test"}
	if auth {
		ids = identity.FromContext{}
		opts.Auth = identity.Config{Secret: testSecret, Issuer: "kith"}
	}

	hub := NewHub()
	dispatcher := notify.NewLocalDispatcher(hub, 50*time.Millisecond)
	svc := crm.NewService(store, ids, notify.NewScheduler(dispatcher, nil), nil)

	ts := httptest.NewServer(New(svc, ids, hub, opts))
	t.Cleanup(ts.Close)
	return ts, hub
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, true)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
}

func TestRelationshipCRUD(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/relationships", "", map[string]any{
		"contactName":       "Sam",
		"reminderFrequency": "week",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var rel models.Relationship
	require.NoError(t, json.Unmarshal(body, &rel))
	assert.Equal(t, "local", rel.UserID)
	require.NotNil(t, rel.NextReminderDate)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/relationships", "", map[string]any{"contactName": "sam"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var conflict errorBody
	require.NoError(t, json.Unmarshal(body, &conflict))
	assert.Equal(t, rel.ID, conflict.Existing)
	assert.NotEmpty(t, conflict.ForkName)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/relationships?onConflict=fork", "", map[string]any{"contactName": "sam"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPatch, ts.URL+"/api/relationships/"+rel.ID, "", map[string]any{"notes": "met at work"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated struct {
		Data models.Relationship `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "met at work", updated.Data.Notes)
	assert.Equal(t, "Sam", updated.Data.ContactName)

	resp, _ = doJSON(t, http.MethodPatch, ts.URL+"/api/relationships/"+rel.ID, "", map[string]any{
		"contactData": map[string]any{"emails": []string{"not-an-email"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/relationships/"+rel.ID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/relationships/"+rel.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActivityEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/activities", "", map[string]any{
		"type":        "note",
		"contactName": "Alex",
		"content":     "Starting a new job",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		Data models.Activity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, models.DefaultNoteCategory, created.Data.Category)

	// The relationship was created on demand.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/relationships", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rels []models.Relationship
	require.NoError(t, json.Unmarshal(body, &rels))
	require.Len(t, rels, 1)
	assert.Equal(t, "Alex", rels[0].ContactName)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/activities", "", map[string]any{"type": "meeting"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), `"type"`)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/activities/"+created.Data.ID+"/archive", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/activities", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/relationships/"+rels[0].ID+"/activities", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var timeline []models.Activity
	require.NoError(t, json.Unmarshal(body, &timeline))
	assert.Len(t, timeline, 1)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/activities?limit=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReminderEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, false)

	due := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/activities", "", map[string]any{
		"type":         "reminder",
		"contactName":  "Jo",
		"reminderDate": due,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		Data     models.Activity `json:"data"`
		Warnings []string        `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Empty(t, created.Warnings)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/reminders", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rems []models.Reminder
	require.NoError(t, json.Unmarshal(body, &rems))
	require.Len(t, rems, 1)
	assert.Equal(t, created.Data.ReminderID, rems[0].ID)
	assert.Len(t, rems[0].NotificationHandles, 3)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/activities/"+created.Data.ID+"/complete", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"isCompleted":true`)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/activities", "", map[string]any{
		"type":         "reminder",
		"contactName":  "Jo",
		"reminderDate": time.Now().Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthScopesRequestsToTokenSubject(t *testing.T) {
	ts, _ := newTestServer(t, true)
	cfg := identity.Config{Secret: testSecret, Issuer: "kith"}

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/relationships", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	alice, err := identity.IssueToken("alice", cfg, time.Hour)
	require.NoError(t, err)
	bob, err := identity.IssueToken("bob", cfg, time.Hour)
	require.NoError(t, err)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/relationships", alice, map[string]any{"contactName": "Riley"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var rel models.Relationship
	require.NoError(t, json.Unmarshal(body, &rel))
	assert.Equal(t, "alice", rel.UserID)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/relationships/"+rel.ID, bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/relationships", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, false)
	doJSON(t, http.MethodGet, ts.URL+"/api/health", "", nil)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "kith_http_requests_total")
}

func readEvent(t *testing.T, conn *websocket.Conn, match func(Event, []byte) bool) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		if match(ev, data) {
			return
		}
	}
}

func TestWebSocketStreamsSnapshotsAndNotifications(t *testing.T) {
	ts, hub := newTestServer(t, false)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent(t, conn, func(ev Event, _ []byte) bool {
		return ev.Type == TypeSnapshot && ev.Collection == "relationships"
	})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/relationships", "", map[string]any{"contactName": "Casey"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	readEvent(t, conn, func(ev Event, raw []byte) bool {
		return ev.Collection == "relationships" && strings.Contains(string(raw), "Casey")
	})

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Deliver(context.Background(), notify.Notification{
		Handle:  "n-1",
		Message: notify.Message{UserID: "local", Title: "Casey: follow up"},
	}))
	readEvent(t, conn, func(ev Event, raw []byte) bool {
		return ev.Type == TypeNotification && strings.Contains(string(raw), "Casey: follow up")
	})

	// Another user's notification is not delivered.
	require.NoError(t, hub.Deliver(context.Background(), notify.Notification{
		Message: notify.Message{UserID: "someone-else", Title: "private"},
	}))
}
