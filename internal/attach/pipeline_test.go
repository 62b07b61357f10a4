package attach

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"askbridge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fileServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer src-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		data, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	}))
}

func TestFetch_OversizedDroppedSmallSucceeds(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 11<<20)
	small := bytes.Repeat([]byte("y"), 1<<20)
	srv := fileServer(t, map[string][]byte{"/big.bin": big, "/small.bin": small})
	defer srv.Close()

	p := New(Config{Token: "src-token", HTTPClient: srv.Client(), Logger: testLogger()})

	got := p.Fetch(context.Background(), []domain.FileMeta{
		{Name: "big.bin", URL: srv.URL + "/big.bin", Mimetype: "application/octet-stream", Size: int64(len(big))},
		{Name: "small.bin", URL: srv.URL + "/small.bin", Mimetype: "application/octet-stream", Size: int64(len(small))},
	})

	if len(got) != 1 {
		t.Fatalf("expected only the small file to survive, got %d attachments", len(got))
	}
	if got[0].Name != "small.bin" {
		t.Fatalf("unexpected survivor: %q", got[0].Name)
	}
	decoded, err := base64.StdEncoding.DecodeString(got[0].Content)
	if err != nil {
		t.Fatalf("content is not valid base64: %v", err)
	}
	if !bytes.Equal(decoded, small) {
		t.Fatal("decoded content does not match the source file")
	}
}

func TestFetch_UndeclaredOversizeDropped(t *testing.T) {
	// The platform claims 1 KiB but serves more than the cap: the byte
	// count during transfer must still catch it.
	srv := fileServer(t, map[string][]byte{"/liar.bin": bytes.Repeat([]byte("z"), 200)})
	defer srv.Close()

	p := New(Config{Token: "src-token", MaxSize: 100, HTTPClient: srv.Client(), Logger: testLogger()})
	got := p.Fetch(context.Background(), []domain.FileMeta{
		{Name: "liar.bin", URL: srv.URL + "/liar.bin", Size: 50},
	})
	if len(got) != 0 {
		t.Fatalf("expected under-declared oversize file to be dropped, got %d", len(got))
	}
}

func TestFetch_OneFailureDoesNotAbortBatch(t *testing.T) {
	srv := fileServer(t, map[string][]byte{"/ok.txt": []byte("hello")})
	defer srv.Close()

	p := New(Config{Token: "src-token", HTTPClient: srv.Client(), Logger: testLogger()})
	got := p.Fetch(context.Background(), []domain.FileMeta{
		{Name: "missing.txt", URL: srv.URL + "/missing.txt", Size: 10},
		{Name: "ok.txt", URL: srv.URL + "/ok.txt", Mimetype: "text/plain", Size: 5},
	})

	if len(got) != 1 || got[0].Name != "ok.txt" {
		t.Fatalf("expected ok.txt to survive the batch, got %v", got)
	}
	if got[0].Mimetype != "text/plain" {
		t.Fatalf("mimetype must pass through, got %q", got[0].Mimetype)
	}
}

func TestFetch_EmptyBatch(t *testing.T) {
	p := New(Config{Logger: testLogger()})
	if got := p.Fetch(context.Background(), nil); len(got) != 0 {
		t.Fatalf("expected no attachments, got %v", got)
	}
}
