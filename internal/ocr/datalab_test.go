package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDatalabValidate(t *testing.T) {
	c := NewDatalabClient(DatalabConfig{APIKey: "k"}, discardLogger())

	cases := []struct {
		name     string
		size     int
		mimeType string
		wantErr  bool
	}{
		{"empty file", 0, "application/pdf", true},
		{"too large", datalabMaxFileSize + 1, "application/pdf", true},
		{"unsupported mime", 100, "text/plain", true},
		{"pdf ok", 100, "application/pdf", false},
		{"png ok", 100, "image/png", false},
		{"case insensitive", 100, "IMAGE/PNG", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.Validate(tc.size, tc.mimeType)
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDatalabSubmitRejectsTooManyLanguages(t *testing.T) {
	c := NewDatalabClient(DatalabConfig{APIKey: "k", BaseURL: "http://unused.test"}, discardLogger())
	_, err := c.Submit(context.Background(), []byte("x"), "a.pdf", "application/pdf", Options{
		Languages: []string{"English", "Spanish", "French", "German", "Italian"},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDatalabSubmitAndPoll(t *testing.T) {
	var checkURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/ocr", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Error("expected X-Api-Key header")
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("langs"); got != "English,Spanish" {
			t.Errorf("langs = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":           true,
			"request_id":        "req-1",
			"request_check_url": checkURL,
		})
	})
	polls := 0
	mux.HandleFunc("/check/req-1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls == 1 {
			json.NewEncoder(w).Encode(map[string]any{"status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "complete",
			"success":    true,
			"page_count": 2,
			"pages": []map[string]any{
				{
					"page": 1,
					"text_lines": []map[string]any{
						{"text": "NAME: JOHN SMITH", "confidence": 0.9, "bbox": []float64{0, 0, 10, 10}},
						{"text": "   ", "confidence": 0.1},
						{"text": "EXP: 12/25/2030", "confidence": 0.8},
					},
				},
				{
					"page": 2,
					"text_lines": []map[string]any{
						{"text": "CLASS: A", "confidence": 0.7},
					},
				},
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	checkURL = server.URL + "/check/req-1"

	c := NewDatalabClient(DatalabConfig{BaseURL: server.URL, APIKey: "test-key"}, discardLogger())

	handle, err := c.Submit(context.Background(), []byte("%PDF-"), "cdl.pdf", "application/pdf", Options{
		Languages: []string{"English", "Spanish"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if handle.RequestID != "req-1" {
		t.Errorf("request id = %q", handle.RequestID)
	}

	result, done, err := c.Poll(context.Background(), handle)
	if err != nil || done {
		t.Fatalf("first poll: done=%v err=%v", done, err)
	}
	if result != nil {
		t.Fatal("expected nil result while processing")
	}

	result, done, err = c.Poll(context.Background(), handle)
	if err != nil || !done {
		t.Fatalf("second poll: done=%v err=%v", done, err)
	}
	if result.Provider != "datalab" {
		t.Errorf("provider = %q", result.Provider)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("pages = %d", len(result.Pages))
	}
	// whitespace-only line is dropped
	if len(result.Pages[0].Lines) != 2 {
		t.Errorf("page 1 lines = %d", len(result.Pages[0].Lines))
	}
	want := float32(0.9+0.8+0.7) / 3
	if diff := result.AverageConfidence - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("average confidence = %v, want %v", result.AverageConfidence, want)
	}
	if result.FullText != "NAME: JOHN SMITH\nEXP: 12/25/2030\n\nCLASS: A" {
		t.Errorf("full text = %q", result.FullText)
	}
}

func TestDatalabSubmitErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, ErrAuthentication},
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, ErrRateLimit},
		{"bad request", http.StatusBadRequest, `{"error":"corrupt file"}`, ErrProcessing},
		{"declared failure", http.StatusOK, `{"success":false,"error":"unreadable"}`, ErrProcessing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			c := NewDatalabClient(DatalabConfig{BaseURL: server.URL, APIKey: "k"}, discardLogger())
			_, err := c.Submit(context.Background(), []byte("x"), "a.pdf", "application/pdf", Options{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want kind %v", err, tc.want)
			}
		})
	}
}

func TestDatalabPollTerminalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "complete",
			"success": false,
			"error":   "could not read document",
		})
	}))
	defer server.Close()

	c := NewDatalabClient(DatalabConfig{BaseURL: server.URL, APIKey: "k"}, discardLogger())
	_, done, err := c.Poll(context.Background(), JobHandle{CheckURL: server.URL + "/check"})
	if !done {
		t.Error("terminal failure should report done")
	}
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("got %v, want processing error", err)
	}
}

func TestDatalabNoLinesYieldsZeroConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "complete",
			"success":    true,
			"page_count": 1,
			"pages":      []map[string]any{{"page": 1, "text_lines": []any{}}},
		})
	}))
	defer server.Close()

	c := NewDatalabClient(DatalabConfig{BaseURL: server.URL, APIKey: "k"}, discardLogger())
	result, done, err := c.Poll(context.Background(), JobHandle{CheckURL: server.URL + "/check"})
	if err != nil || !done {
		t.Fatalf("poll: done=%v err=%v", done, err)
	}
	if result.AverageConfidence != 0 {
		t.Errorf("average confidence = %v, want 0", result.AverageConfidence)
	}
	if result.FullText != "" {
		t.Errorf("full text = %q, want empty", result.FullText)
	}
}
