package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/irissociety/irisportal/internal/roster"
)

type mockRosterImporter struct {
	importFn func(ctx context.Context, src roster.Source) (*roster.Result, error)
}

func (m *mockRosterImporter) Import(ctx context.Context, src roster.Source) (*roster.Result, error) {
	return m.importFn(ctx, src)
}

type stubSource struct{}

func (stubSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (stubSource) String() string { return "https://example.com/roster.csv" }

func TestRosterHandler_Import(t *testing.T) {
	tests := []struct {
		name       string
		result     *roster.Result
		err        error
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name:       "success",
			result:     &roster.Result{Count: 42},
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"success": true, "count": float64(42)},
		},
		{
			name:       "empty roster",
			result:     &roster.Result{Count: 0},
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"success": true, "count": float64(0)},
		},
		{
			name:       "format error",
			err:        &roster.FormatError{Reason: "missing required column \"Email Address\""},
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]any{"success": false, "committed": float64(0)},
		},
		{
			name:       "partial failure",
			err:        fmt.Errorf("import aborted: %w", &roster.BatchError{Committed: 200, Err: errors.New("deadlock detected")}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"success": false, "committed": float64(200)},
		},
		{
			name:       "fetch error",
			err:        errors.New("unexpected status 404"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"success": false, "committed": float64(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer := &mockRosterImporter{
				importFn: func(_ context.Context, src roster.Source) (*roster.Result, error) {
					if src.String() != "https://example.com/roster.csv" {
						t.Errorf("source = %q", src.String())
					}
					return tt.result, tt.err
				},
			}
			h := NewRosterHandler(importer, stubSource{})

			w := httptest.NewRecorder()
			h.Import(w, httptest.NewRequest(http.MethodGet, "/api/roster/import", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeBody(t, w)
			for k, v := range tt.wantBody {
				if body[k] != v {
					t.Errorf("%s = %v, want %v", k, body[k], v)
				}
			}
			if tt.err != nil {
				if msg, _ := body["error"].(string); msg != tt.err.Error() {
					t.Errorf("error = %q, want %q", msg, tt.err.Error())
				}
			}
		})
	}
}
