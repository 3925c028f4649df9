package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"koinonia/api/internal/identity"
	"koinonia/api/internal/notify"
	"koinonia/api/internal/store"
)

func newTestServer(t *testing.T, st dataStore) *HTTPServer {
	t.Helper()
	return NewHTTPServer(newTestService(st), notify.NewHub(), "*")
}

func memberToken(t *testing.T, claims identity.Claims) string {
	t.Helper()
	if claims.Exp == 0 {
		claims.Exp = time.Now().Add(time.Hour).Unix()
	}
	token, err := identity.IssueToken([]byte("test-secret"), claims)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, request)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	return payload
}

func TestHealthDoesNotRequireToken(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	recorder := doRequest(t, server, http.MethodGet, "/api/health", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}

func TestMissingTokenIsRejected(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	recorder := doRequest(t, server, http.MethodGet, "/api/boards", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["code"] != "NOT_AUTHENTICATED" {
		t.Fatalf("code = %v, want NOT_AUTHENTICATED", payload["code"])
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	server := newTestServer(t, &fakeStore{})
	token := memberToken(t, identity.Claims{
		Sub:  "mem_1",
		Name: "Ruth",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})

	recorder := doRequest(t, server, http.MethodGet, "/api/boards", token, "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestListBoardsHappyPath(t *testing.T) {
	st := &fakeStore{
		listBoardsFn: func(ctx context.Context) ([]store.Board, error) {
			return []store.Board{publicBoard("brd_1")}, nil
		},
	}
	server := newTestServer(t, st)
	token := memberToken(t, identity.Claims{Sub: "mem_1", Name: "Ruth"})

	recorder := doRequest(t, server, http.MethodGet, "/api/boards", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	boards, ok := payload["boards"].([]any)
	if !ok || len(boards) != 1 {
		t.Fatalf("unexpected boards payload: %v", payload)
	}
	board := boards[0].(map[string]any)
	if board["id"] != "brd_1" || board["accessType"] != "public" {
		t.Fatalf("unexpected board fields: %v", board)
	}
}

func TestUnknownThreadMapsToNotFound(t *testing.T) {
	server := newTestServer(t, &fakeStore{})
	token := memberToken(t, identity.Claims{Sub: "mem_1", Name: "Ruth"})

	recorder := doRequest(t, server, http.MethodGet, "/api/threads/thr_missing/messages", token, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("code = %v, want NOT_FOUND", payload["code"])
	}
}

func TestCreateThreadReturnsThreadAndFirstMessage(t *testing.T) {
	st := &fakeStore{
		getBoardFn: func(ctx context.Context, id string) (store.Board, error) {
			return publicBoard(id), nil
		},
		createThreadFn: func(ctx context.Context, thread store.Thread, message store.Message) (store.Thread, store.Message, error) {
			thread.MessageCount = 1
			message.ThreadID = thread.ID
			return thread, message, nil
		},
	}
	server := newTestServer(t, st)
	token := memberToken(t, identity.Claims{Sub: "mem_1", Name: "Ruth"})

	recorder := doRequest(t, server, http.MethodPost, "/api/boards/brd_1/threads", token,
		`{"title":"Welcome","content":"First post"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	thread, ok := payload["thread"].(map[string]any)
	if !ok || thread["title"] != "Welcome" {
		t.Fatalf("unexpected thread payload: %v", payload)
	}
	message, ok := payload["message"].(map[string]any)
	if !ok || message["content"] != "First post" {
		t.Fatalf("unexpected message payload: %v", payload)
	}
}

func TestValidationErrorsSurfaceAs422(t *testing.T) {
	st := &fakeStore{
		getBoardFn: func(ctx context.Context, id string) (store.Board, error) {
			return publicBoard(id), nil
		},
	}
	server := newTestServer(t, st)
	token := memberToken(t, identity.Claims{Sub: "mem_1", Name: "Ruth"})

	recorder := doRequest(t, server, http.MethodPost, "/api/boards/brd_1/threads", token,
		`{"title":"","content":"body"}`)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", recorder.Code)
	}
	payload := decodeResponse(t, recorder)
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("code = %v, want VALIDATION_ERROR", payload["code"])
	}
}

func TestModerationEndpointForbiddenForMembers(t *testing.T) {
	server := newTestServer(t, &fakeStore{})
	token := memberToken(t, identity.Claims{Sub: "mem_1", Name: "Ruth"})

	recorder := doRequest(t, server, http.MethodGet, "/api/reports", token, "")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", recorder.Code)
	}

	modToken := memberToken(t, identity.Claims{Sub: "mem_mod", Name: "Esther", Moderator: true})
	recorder = doRequest(t, server, http.MethodGet, "/api/reports", modToken, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("moderator status = %d, want 200", recorder.Code)
	}
}

func TestReactionRoundTripOverHTTP(t *testing.T) {
	st := &fakeStore{
		getMessageFn: func(ctx context.Context, id string) (store.Message, error) {
			return store.Message{ID: id, ThreadID: "thr_1"}, nil
		},
		getThreadFn: func(ctx context.Context, id string) (store.Thread, error) {
			return store.Thread{ID: id, BoardID: "brd_1"}, nil
		},
		getBoardFn: func(ctx context.Context, id string) (store.Board, error) {
			return publicBoard(id), nil
		},
	}
	server := newTestServer(t, st)
	token := memberToken(t, identity.Claims{Sub: "mem_1", Name: "Ruth"})

	recorder := doRequest(t, server, http.MethodPut, "/api/messages/msg_1/reactions", token, `{"type":"love"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("add status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doRequest(t, server, http.MethodDelete, "/api/messages/msg_1/reactions", token, `{"type":"love"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("remove status = %d, want 200", recorder.Code)
	}

	recorder = doRequest(t, server, http.MethodPut, "/api/messages/msg_1/reactions", token, `{"type":"shrug"}`)
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid type status = %d, want 422", recorder.Code)
	}
}

func TestUnseenEndpointReturnsCount(t *testing.T) {
	lastMessage := time.Now()
	st := &fakeStore{
		getThreadFn: func(ctx context.Context, id string) (store.Thread, error) {
			return store.Thread{ID: id, BoardID: "brd_1", MessageCount: 4, LastMessageAt: &lastMessage}, nil
		},
		getBoardFn: func(ctx context.Context, id string) (store.Board, error) {
			return publicBoard(id), nil
		},
		countMessagesAfterFn: func(ctx context.Context, threadID string, after time.Time) (int, error) {
			return 4, nil
		},
	}
	server := newTestServer(t, st)
	token := memberToken(t, identity.Claims{Sub: "mem_1", Name: "Ruth"})

	recorder := doRequest(t, server, http.MethodGet, "/api/unseen?threadId=thr_1", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeResponse(t, recorder)
	if payload["unseen"] != float64(4) {
		t.Fatalf("unseen = %v, want 4", payload["unseen"])
	}
}
