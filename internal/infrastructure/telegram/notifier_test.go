package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ScholarshipScanner/internal/config"
)

func TestPublishPostsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText, gotMode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		gotMode = r.PostForm.Get("parse_mode")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "token", ChatID: "42", Endpoint: server.URL + "/"}, server.Client())
	if err := n.Publish(context.Background(), "*Novo edital*"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if gotPath != "/bottoken/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChat != "42" || gotText != "*Novo edital*" || gotMode != "Markdown" {
		t.Fatalf("unexpected form: chat=%s text=%s mode=%s", gotChat, gotText, gotMode)
	}
}

func TestPublishFailures(t *testing.T) {
	t.Parallel()

	if err := NewNotifier(config.TelegramConfig{}, nil).Publish(context.Background(), "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "t", ChatID: "1", Endpoint: server.URL}, server.Client())
	if err := n.Publish(context.Background(), "x"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
