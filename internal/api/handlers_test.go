package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/debashish17/Riverside/internal/auth"
	"github.com/debashish17/Riverside/internal/config"
	"github.com/debashish17/Riverside/internal/lifecycle"
	"github.com/debashish17/Riverside/internal/recording"
	"github.com/debashish17/Riverside/internal/repo"
	"github.com/debashish17/Riverside/internal/storage"
)

type sessionBody struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Message string `json:"message"`
	Session struct {
		ID           int64    `json:"id"`
		Name         string   `json:"name"`
		Status       string   `json:"status"`
		Owner        string   `json:"owner"`
		Members      []string `json:"members"`
		Participants []struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			IsOwner  bool   `json:"isOwner"`
		} `json:"participants"`
	} `json:"session"`
}

func TestSessionLifecycleFlow(t *testing.T) {
	router, db := newTestServer(t)
	defer db.Close()

	ownerToken := registerAndLogin(t, router, "owner")
	guestToken := registerAndLogin(t, router, "guest")

	// Create.
	resp := doJSONRequest(t, router, http.MethodPost, "/api/session/create",
		map[string]any{"name": "Standup", "description": "daily"}, ownerToken)
	assertStatus(t, resp, http.StatusCreated)
	var created sessionBody
	decodeJSON(t, resp.Body.Bytes(), &created)
	if !created.Success || created.Session.ID <= 0 {
		t.Fatalf("unexpected create body: %s", resp.Body.String())
	}
	if len(created.Session.Participants) != 1 || !created.Session.Participants[0].IsOwner {
		t.Fatalf("creator not sole participant: %s", resp.Body.String())
	}
	sid := strconv.FormatInt(created.Session.ID, 10)

	// Join.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/join",
		map[string]any{"sessionId": sid}, guestToken)
	assertStatus(t, resp, http.StatusOK)
	var joined sessionBody
	decodeJSON(t, resp.Body.Bytes(), &joined)
	if len(joined.Session.Participants) != 2 {
		t.Fatalf("join did not grow membership: %s", resp.Body.String())
	}

	// Get as member.
	resp = doJSONRequest(t, router, http.MethodGet, "/api/session/"+sid, nil, guestToken)
	assertStatus(t, resp, http.StatusOK)

	// Get as outsider is forbidden.
	outsiderToken := registerAndLogin(t, router, "outsider")
	resp = doJSONRequest(t, router, http.MethodGet, "/api/session/"+sid, nil, outsiderToken)
	assertStatus(t, resp, http.StatusForbidden)

	// Lists.
	resp = doJSONRequest(t, router, http.MethodGet, "/api/session/my", nil, ownerToken)
	assertStatus(t, resp, http.StatusOK)
	var myBody struct {
		Success  bool              `json:"success"`
		Sessions []json.RawMessage `json:"sessions"`
		Summary  struct {
			Total  int `json:"total"`
			Active int `json:"active"`
		} `json:"summary"`
	}
	decodeJSON(t, resp.Body.Bytes(), &myBody)
	if myBody.Summary.Total != 1 || myBody.Summary.Active != 1 {
		t.Fatalf("unexpected summary: %s", resp.Body.String())
	}

	resp = doJSONRequest(t, router, http.MethodGet, "/api/session/active", nil, guestToken)
	assertStatus(t, resp, http.StatusOK)

	// Guest smart-leave just leaves.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/smart-leave",
		map[string]any{"sessionId": sid}, guestToken)
	assertStatus(t, resp, http.StatusOK)
	var left sessionBody
	decodeJSON(t, resp.Body.Bytes(), &left)
	if left.Action != "left" || left.Session.Status != "active" {
		t.Fatalf("guest smart-leave: %s", resp.Body.String())
	}

	// Owner smart-leave terminates.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/smart-leave",
		map[string]any{"sessionId": sid}, ownerToken)
	assertStatus(t, resp, http.StatusOK)
	var terminated sessionBody
	decodeJSON(t, resp.Body.Bytes(), &terminated)
	if terminated.Action != "terminated" || terminated.Session.Status != "terminated" {
		t.Fatalf("owner smart-leave: %s", resp.Body.String())
	}
	if len(terminated.Session.Participants) != 0 {
		t.Fatalf("termination left participants: %s", resp.Body.String())
	}

	// Recent now includes the terminated session for its owner.
	resp = doJSONRequest(t, router, http.MethodGet, "/api/session/recent", nil, ownerToken)
	assertStatus(t, resp, http.StatusOK)
	var recentBody struct {
		Total int `json:"total"`
	}
	decodeJSON(t, resp.Body.Bytes(), &recentBody)
	if recentBody.Total != 1 {
		t.Fatalf("expected 1 recent session: %s", resp.Body.String())
	}
}

func TestSessionTransitionStatuses(t *testing.T) {
	router, db := newTestServer(t)
	defer db.Close()

	ownerToken := registerAndLogin(t, router, "owner")
	guestToken := registerAndLogin(t, router, "guest")

	resp := doJSONRequest(t, router, http.MethodPost, "/api/session/create",
		map[string]any{"name": "Room"}, ownerToken)
	assertStatus(t, resp, http.StatusCreated)
	var created sessionBody
	decodeJSON(t, resp.Body.Bytes(), &created)
	sid := strconv.FormatInt(created.Session.ID, 10)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/join",
		map[string]any{"sessionId": sid}, guestToken)
	assertStatus(t, resp, http.StatusOK)

	// Member may not end, terminate, or clear.
	for _, path := range []string{"/api/session/end", "/api/session/terminate", "/api/session/clear"} {
		resp = doJSONRequest(t, router, http.MethodPost, path, map[string]any{"sessionId": sid}, guestToken)
		assertStatus(t, resp, http.StatusForbidden)
	}

	// End succeeds for the owner and keeps members.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/end",
		map[string]any{"sessionId": sid}, ownerToken)
	assertStatus(t, resp, http.StatusOK)
	var ended sessionBody
	decodeJSON(t, resp.Body.Bytes(), &ended)
	if ended.Session.Status != "ended" || len(ended.Session.Participants) != 2 {
		t.Fatalf("end response: %s", resp.Body.String())
	}

	// Joining an ended session is a 400.
	other := registerAndLogin(t, router, "late")
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/join",
		map[string]any{"sessionId": sid}, other)
	assertStatus(t, resp, http.StatusBadRequest)

	// A second transition is rejected, status survives.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/terminate",
		map[string]any{"sessionId": sid}, ownerToken)
	assertStatus(t, resp, http.StatusBadRequest)

	// Clear still works on a terminal session.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/clear",
		map[string]any{"sessionId": sid}, ownerToken)
	assertStatus(t, resp, http.StatusOK)

	// Join after clear reports not found, not invalid state.
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/join",
		map[string]any{"sessionId": sid}, other)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestSessionRequestValidation(t *testing.T) {
	router, db := newTestServer(t)
	defer db.Close()

	token := registerAndLogin(t, router, "alice")

	resp := doJSONRequest(t, router, http.MethodPost, "/api/session/create",
		map[string]any{"name": "   "}, token)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/create",
		map[string]any{"name": "Tiny", "maxParticipants": 1}, token)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/join",
		map[string]any{"sessionId": ""}, token)
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/leave",
		map[string]any{"sessionId": "999"}, token)
	assertStatus(t, resp, http.StatusNotFound)

	// Leaving a session you never joined is a 404.
	createResp := doJSONRequest(t, router, http.MethodPost, "/api/session/create",
		map[string]any{"name": "Room"}, token)
	assertStatus(t, createResp, http.StatusCreated)
	var created sessionBody
	decodeJSON(t, createResp.Body.Bytes(), &created)

	stranger := registerAndLogin(t, router, "stranger")
	resp = doJSONRequest(t, router, http.MethodPost, "/api/session/leave",
		map[string]any{"sessionId": strconv.FormatInt(created.Session.ID, 10)}, stranger)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestAuthRequired(t *testing.T) {
	router, db := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodPost, "/api/session/create",
		map[string]any{"name": "Room"}, "")
	assertStatus(t, resp, http.StatusUnauthorized)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/user/me", nil, "garbage-token")
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestRegisterAndLoginEndpoints(t *testing.T) {
	router, db := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodPost, "/api/auth/register",
		map[string]string{"username": "alice", "email": "a@b.com", "password": "hunter22"}, "")
	assertStatus(t, resp, http.StatusCreated)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/auth/register",
		map[string]string{"username": "alice", "email": "c@d.com", "password": "hunter22"}, "")
	assertStatus(t, resp, http.StatusBadRequest)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "alice", "password": "wrong"}, "")
	assertStatus(t, resp, http.StatusUnauthorized)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "alice", "password": "hunter22"}, "")
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Token string `json:"token"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Token == "" {
		t.Fatalf("missing token: %s", resp.Body.String())
	}

	// Token also accepted via query parameter (websocket handshake path).
	req := httptest.NewRequest(http.MethodGet, "/api/user/me?token="+body.Token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusOK)
}

func TestChunkedRecordingUpload(t *testing.T) {
	router, db := newTestServer(t)
	defer db.Close()

	token := registerAndLogin(t, router, "alice")

	resp := doJSONRequest(t, router, http.MethodPost, "/api/recordings/chunk/init",
		map[string]any{"filename": "take1.webm", "sessionName": "Standup"}, token)
	assertStatus(t, resp, http.StatusCreated)
	var initBody struct {
		UploadID string `json:"uploadId"`
	}
	decodeJSON(t, resp.Body.Bytes(), &initBody)
	if initBody.UploadID == "" {
		t.Fatalf("missing upload id: %s", resp.Body.String())
	}

	for _, chunk := range []string{"first-", "second"} {
		resp = doMultipartRequest(t, router, "/api/recordings/chunk/"+initBody.UploadID,
			"chunk", "blob", []byte(chunk), token)
		assertStatus(t, resp, http.StatusOK)
	}

	// Another user cannot touch the upload.
	intruder := registerAndLogin(t, router, "intruder")
	resp = doMultipartRequest(t, router, "/api/recordings/chunk/"+initBody.UploadID,
		"chunk", "blob", []byte("evil"), intruder)
	assertStatus(t, resp, http.StatusNotFound)

	resp = doJSONRequest(t, router, http.MethodPost,
		"/api/recordings/chunk/"+initBody.UploadID+"/complete", nil, token)
	assertStatus(t, resp, http.StatusCreated)
	var completeBody struct {
		Recording struct {
			Size         int64  `json:"size"`
			OriginalName string `json:"originalName"`
		} `json:"recording"`
	}
	decodeJSON(t, resp.Body.Bytes(), &completeBody)
	if completeBody.Recording.Size != int64(len("first-second")) {
		t.Fatalf("unexpected recording size: %s", resp.Body.String())
	}

	// The claim is released on completion.
	resp = doJSONRequest(t, router, http.MethodPost,
		"/api/recordings/chunk/"+initBody.UploadID+"/complete", nil, token)
	assertStatus(t, resp, http.StatusNotFound)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/recordings", nil, token)
	assertStatus(t, resp, http.StatusOK)
	var listBody struct {
		Total int `json:"total"`
	}
	decodeJSON(t, resp.Body.Bytes(), &listBody)
	if listBody.Total != 1 {
		t.Fatalf("expected 1 recording: %s", resp.Body.String())
	}
}

func TestSingleShotRecordingUpload(t *testing.T) {
	router, db := newTestServer(t)
	defer db.Close()
	token := registerAndLogin(t, router, "alice")

	resp := doMultipartRequest(t, router, "/api/recordings/upload",
		"recording", "take.webm", []byte("payload"), token)
	assertStatus(t, resp, http.StatusCreated)

	resp = doJSONRequest(t, router, http.MethodGet, "/api/recordings", nil, token)
	assertStatus(t, resp, http.StatusOK)
	var listBody struct {
		Total int `json:"total"`
	}
	decodeJSON(t, resp.Body.Bytes(), &listBody)
	if listBody.Total != 1 {
		t.Fatalf("expected 1 recording: %s", resp.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, db := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodGet, "/health", nil, "")
	assertStatus(t, resp, http.StatusOK)
}

func newTestServer(t *testing.T) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:?_foreign_keys=on"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	authSvc := auth.NewService(db, "test-secret", time.Hour)
	lifecycleSvc := lifecycle.NewService(repo.NewSessions(db), nil, nil)
	recordingSvc, err := recording.NewService(db, t.TempDir(), recording.NewMemoryTracker(time.Minute))
	if err != nil {
		t.Fatalf("recording service: %v", err)
	}

	router := gin.New()
	NewHandler(authSvc, lifecycleSvc, recordingSvc, nil).RegisterRoutes(router)
	return router, db
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()
	resp := doJSONRequest(t, router, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"password": "pass123",
	}, "")
	assertStatus(t, resp, http.StatusCreated)

	resp = doJSONRequest(t, router, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": "pass123",
	}, "")
	assertStatus(t, resp, http.StatusOK)
	var body struct {
		Token string `json:"token"`
	}
	decodeJSON(t, resp.Body.Bytes(), &body)
	if body.Token == "" {
		t.Fatalf("expected token after login")
	}
	return body.Token
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doMultipartRequest(t *testing.T, router *gin.Engine, path, field, filename string, data []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v (%s)", err, data)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, want, rec.Body.String())
	}
}
