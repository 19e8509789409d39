package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMarkerValidateAcceptsOfficeFormats(t *testing.T) {
	c := NewMarkerClient(MarkerConfig{APIKey: "k"}, discardLogger())
	for _, mt := range []string{
		"application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-powerpoint",
		"text/html",
	} {
		if err := c.Validate(100, mt); err != nil {
			t.Errorf("Validate(%q): %v", mt, err)
		}
	}
	if err := c.Validate(100, "audio/mpeg"); err == nil {
		t.Error("expected rejection of audio/mpeg")
	}
}

func TestMarkerSubmitFormFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("output_format"); got != "json" {
			t.Errorf("output_format = %q", got)
		}
		if got := r.FormValue("force_ocr"); got != "true" {
			t.Errorf("force_ocr = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":           true,
			"request_id":        "m-1",
			"request_check_url": "http://example.test/check",
		})
	}))
	defer server.Close()

	c := NewMarkerClient(MarkerConfig{BaseURL: server.URL, APIKey: "k"}, discardLogger())
	handle, err := c.Submit(context.Background(), []byte("%PDF-"), "doc.pdf", "application/pdf", Options{ForceOCR: true})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if handle.RequestID != "m-1" {
		t.Errorf("request id = %q", handle.RequestID)
	}
}

func markerPollBody(children ...map[string]any) map[string]any {
	return map[string]any{
		"status":  "complete",
		"success": true,
		"json":    map[string]any{"block_type": "Document", "children": children},
	}
}

func TestMarkerNormalizeBlockTree(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(markerPollBody(
			map[string]any{
				"block_type": "Page",
				"bbox":       []float64{0, 0, 612, 792},
				"children": []map[string]any{
					{"block_type": "SectionHeader", "html": "<h1>RATE CONFIRMATION</h1>", "bbox": []float64{0, 0, 100, 20}},
					{"block_type": "Text", "html": "<p>Total Rate: <b>$2,500.00</b></p>", "bbox": []float64{0, 30, 100, 50}},
					{"block_type": "Text", "html": "<p>  </p>", "bbox": []float64{0, 60, 100, 80}},
					{"block_type": "Text", "html": "<p>ok</p>", "bbox": []float64{0, 90, 100, 110}},
				},
			},
		))
	}))
	defer server.Close()

	c := NewMarkerClient(MarkerConfig{BaseURL: server.URL, APIKey: "k"}, discardLogger())
	result, done, err := c.Poll(context.Background(), JobHandle{CheckURL: server.URL + "/check"})
	if err != nil || !done {
		t.Fatalf("poll: done=%v err=%v", done, err)
	}
	if result.Provider != "marker" {
		t.Errorf("provider = %q", result.Provider)
	}
	if len(result.Pages) != 1 {
		t.Fatalf("pages = %d", len(result.Pages))
	}
	lines := result.Pages[0].Lines
	if len(lines) != 3 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0].Text != "RATE CONFIRMATION" || lines[0].Confidence != 0.95 {
		t.Errorf("header line = %+v", lines[0])
	}
	if lines[1].Text != "Total Rate: $2,500.00" || lines[1].Confidence != 0.9 {
		t.Errorf("text line = %+v", lines[1])
	}
	// short fragments carry reduced confidence
	if lines[2].Text != "ok" || lines[2].Confidence != 0.7 {
		t.Errorf("short line = %+v", lines[2])
	}
	// polygon synthesized from bbox when absent
	if len(lines[0].Polygon) != 4 {
		t.Errorf("polygon = %v", lines[0].Polygon)
	}
}

func TestMarkerEstimateConfidence(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want float32
	}{
		{
			"all blocks usable hits ceiling",
			markerPollBody(map[string]any{
				"block_type": "Page",
				"bbox":       []float64{0, 0, 612, 792},
				"children": []map[string]any{
					{"block_type": "Text", "html": "<p>first line</p>", "bbox": []float64{0, 0, 10, 10}},
					{"block_type": "Text", "html": "<p>second line</p>", "bbox": []float64{0, 20, 10, 30}},
				},
			}),
			0.95,
		},
		{
			"half usable lands mid-range",
			markerPollBody(map[string]any{
				"block_type": "Page",
				"bbox":       []float64{0, 0, 612, 792},
				"children": []map[string]any{
					{"block_type": "Text", "html": "<p>readable</p>", "bbox": []float64{0, 0, 10, 10}},
					{"block_type": "Text", "html": "", "bbox": []float64{0, 20, 10, 30}},
				},
			}),
			0.825,
		},
		{
			"empty tree uses base estimate",
			map[string]any{
				"status":  "complete",
				"success": true,
				"json":    map[string]any{"block_type": "Document"},
			},
			0.8,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.body)
			}))
			defer server.Close()

			c := NewMarkerClient(MarkerConfig{BaseURL: server.URL, APIKey: "k"}, discardLogger())
			result, _, err := c.Poll(context.Background(), JobHandle{CheckURL: server.URL + "/check"})
			if err != nil {
				t.Fatalf("poll: %v", err)
			}
			if diff := result.AverageConfidence - tc.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("confidence = %v, want %v", result.AverageConfidence, tc.want)
			}
		})
	}
}
