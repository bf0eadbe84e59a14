package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AI-Labs-Dengun/cms-comfy-sub000/internal/store"
	"go.uber.org/zap"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", zap.NewNop())
}

func TestFetchMessagesQuery(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent/chats/c1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		q := r.URL.Query()
		if q.Get("limit") != "20" || q.Get("offset") != "40" {
			t.Errorf("query = %v", q)
		}
		_ = json.NewEncoder(w).Encode([]store.Message{{ID: "m1", ChatID: "c1"}})
	})

	msgs, err := c.FetchMessages(context.Background(), "c1", 20, 40)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestFetchMessagesSinceQuery(t *testing.T) {
	since := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("after")
		if got != since.Format(time.RFC3339Nano) {
			t.Errorf("after = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]store.Message{})
	})
	if _, err := c.FetchMessagesSince(context.Background(), "c1", since); err != nil {
		t.Fatal(err)
	}
}

func TestSendMessageBody(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["content"] != "ciphertext-blob" {
			t.Errorf("content = %q", body["content"])
		}
		_ = json.NewEncoder(w).Encode(store.Message{ID: "echo", ChatID: "c1"})
	})

	m, err := c.SendMessage(context.Background(), "c1", "ciphertext-blob")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != "echo" {
		t.Errorf("echo id = %s", m.ID)
	}
}

func TestUpdateChatStatus(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/agent/chats/c1/status" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != "follow_up" {
			t.Errorf("status = %q", body["status"])
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.UpdateChatStatus(context.Background(), "c1", store.StatusFollowUp); err != nil {
		t.Fatal(err)
	}
}

func TestLatestMessageNoContent(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	m, err := c.LatestMessage(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if m != nil {
		t.Errorf("m = %+v, want nil for empty chat", m)
	}
}

func TestUnreadCount(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 7}`))
	})
	n, err := c.UnreadCount(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("count = %d", n)
	}
}

func TestErrorIncludesStatusAndSnippet(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not visible to agent", http.StatusForbidden)
	})
	_, err := c.FetchChats(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "not visible") {
		t.Errorf("err = %v", err)
	}
}
