package sms

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// Sendが正しいフォームとBasic認証でリクエストすることを検証
func TestTwilioClient_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC-test/Messages.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC-test" || pass != "token-test" {
			t.Errorf("basic auth = %q/%q", user, pass)
		}

		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if form.Get("To") != "+251911000000" {
			t.Errorf("To = %q", form.Get("To"))
		}
		if form.Get("From") != "+15550001111" {
			t.Errorf("From = %q", form.Get("From"))
		}
		if form.Get("Body") == "" {
			t.Error("expected non-empty Body")
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM-1"}`))
	}))
	defer server.Close()

	client := NewTwilioClient(server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)), "AC-test", "token-test", "+15550001111")
	client.baseURL = server.URL

	if err := client.Send(context.Background(), "+251911000000", "Your code is 123456"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}

// Sendがエラーステータスでエラーを返すことを検証
func TestTwilioClient_Send_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211}`))
	}))
	defer server.Close()

	client := NewTwilioClient(server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)), "AC-test", "token-test", "+15550001111")
	client.baseURL = server.URL

	if err := client.Send(context.Background(), "invalid", "hello"); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

// MockSenderが送信せずログ出力のみ行うことを検証
func TestMockSender_Send_LogsOnly(t *testing.T) {
	var buf bytes.Buffer
	sender := NewMockSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := sender.Send(context.Background(), "+251911000000", "Your code is 123456"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("mock SMS sent")) {
		t.Errorf("expected log output, got %s", buf.String())
	}
}
