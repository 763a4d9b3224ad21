package roster

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHTTPSource_Open_ReturnsBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("Email Address,Name\na@x.edu,A\n"))
	}))
	defer ts.Close()

	src := NewHTTPSource(ts.URL, ts.Client(), 1024)
	body, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	records, err := Parse(body)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if len(records) != 1 || records[0].Email != "a@x.edu" {
		t.Errorf("records = %+v", records)
	}
	if src.String() != ts.URL {
		t.Errorf("String() = %q, want %q", src.String(), ts.URL)
	}
}

func TestHTTPSource_Open_Non200_ReturnsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewHTTPSource(ts.URL, ts.Client(), 0).Open(context.Background())
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q should mention status code", err.Error())
	}
}

func TestHTTPSource_Open_TooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Email Address,Name\n" + strings.Repeat("a@x.edu,A\n", 100)))
	}))
	defer ts.Close()

	body, err := NewHTTPSource(ts.URL, ts.Client(), 64).Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	_, err = io.ReadAll(body)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

// サイズ超過は形式エラーではなく読み込みエラーとして扱われる。
func TestParse_TooLargeSource_NotFormatError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Email Address,Name\n" + strings.Repeat("a@x.edu,A\n", 100)))
	}))
	defer ts.Close()

	body, err := NewHTTPSource(ts.URL, ts.Client(), 64).Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	_, err = Parse(body)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	var formatErr *FormatError
	if errors.As(err, &formatErr) {
		t.Error("size limit must not be reported as format error")
	}
}

func TestFileSource_Open(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.csv")
	if err := os.WriteFile(path, []byte("Email Address,Name\na@x.edu,A\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	body, err := (&FileSource{Path: path}).Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	records, err := Parse(body)
	if err != nil || len(records) != 1 {
		t.Errorf("records = %+v, err = %v", records, err)
	}
}

func TestFileSource_Open_Missing(t *testing.T) {
	_, err := (&FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}).Open(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
