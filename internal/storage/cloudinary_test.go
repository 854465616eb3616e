package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*CloudinaryClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewCloudinaryClient(
		server.Client(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		"test-cloud", "test-key", "test-secret",
	)
	client.baseURL = server.URL
	return client, server
}

// Uploadが成功レスポンスからURLとPublicIDを取り出すことを検証
func TestCloudinaryClient_Upload_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/test-cloud/image/upload" {
			t.Errorf("path = %s, want /test-cloud/image/upload", r.URL.Path)
		}

		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if form.Get("api_key") != "test-key" {
			t.Errorf("api_key = %q, want %q", form.Get("api_key"), "test-key")
		}
		if form.Get("signature") == "" {
			t.Error("expected non-empty signature")
		}
		if form.Get("folder") != "listings" {
			t.Errorf("folder = %q, want %q", form.Get("folder"), "listings")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"secure_url":"https://res.example.com/listings/abc.jpg","public_id":"listings/abc"}`))
	})

	blob, err := client.Upload(context.Background(), []byte("image-bytes"), "listings")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if blob.URL != "https://res.example.com/listings/abc.jpg" {
		t.Errorf("URL = %q", blob.URL)
	}
	if blob.PublicID != "listings/abc" {
		t.Errorf("PublicID = %q", blob.PublicID)
	}
}

// Uploadがエラーステータスでエラーを返すことを検証
func TestCloudinaryClient_Upload_ErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	})

	_, err := client.Upload(context.Background(), []byte("image-bytes"), "listings")
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

// Deleteが成功することを検証
func TestCloudinaryClient_Delete_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/test-cloud/image/destroy" {
			t.Errorf("path = %s, want /test-cloud/image/destroy", r.URL.Path)
		}

		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if form.Get("public_id") != "listings/abc" {
			t.Errorf("public_id = %q, want %q", form.Get("public_id"), "listings/abc")
		}

		w.Write([]byte(`{"result":"ok"}`))
	})

	if err := client.Delete(context.Background(), "listings/abc"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
}

// Deleteがエラーステータスでエラーを返すことを検証
func TestCloudinaryClient_Delete_ErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := client.Delete(context.Background(), "listings/missing"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

// signがパラメータ順序に依存しない決定的な署名を生成することを検証
func TestCloudinaryClient_Sign_Deterministic(t *testing.T) {
	client := NewCloudinaryClient(http.DefaultClient, slog.New(slog.NewTextHandler(io.Discard, nil)), "c", "k", "secret")

	a := client.sign(map[string]string{"folder": "listings", "timestamp": "1700000000"})
	b := client.sign(map[string]string{"timestamp": "1700000000", "folder": "listings"})
	if a != b {
		t.Errorf("signatures differ: %q vs %q", a, b)
	}
	if len(a) != 40 {
		t.Errorf("signature length = %d, want 40 (hex SHA1)", len(a))
	}
}
