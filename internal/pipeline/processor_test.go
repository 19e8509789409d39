package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-docs/constants"
	"github.com/joseph-ayodele/freight-docs/internal/common"
	"github.com/joseph-ayodele/freight-docs/internal/docparse"
	"github.com/joseph-ayodele/freight-docs/internal/ocr"
	"github.com/joseph-ayodele/freight-docs/internal/repository"
)

type stubRecognizer struct {
	text     string
	err      error
	lastMIME string
	lastName string
}

func (s *stubRecognizer) Recognize(_ context.Context, _ []byte, filename, mimeType string, _ ocr.Options) (*ocr.RecognitionResult, error) {
	s.lastName = filename
	s.lastMIME = mimeType
	if s.err != nil {
		return nil, s.err
	}
	return &ocr.RecognitionResult{
		FullText:          s.text,
		PageCount:         1,
		AverageConfidence: 0.9,
		Provider:          "datalab",
	}, nil
}

type capturedFlag struct {
	loadID uuid.UUID
	flag   string
	value  bool
}

type stubFlagWriter struct {
	calls []capturedFlag
}

func (s *stubFlagWriter) SetFlag(_ context.Context, loadID uuid.UUID, flag string, value bool) error {
	s.calls = append(s.calls, capturedFlag{loadID: loadID, flag: flag, value: value})
	return nil
}

type stubAuditWriter struct {
	entries []repository.AuditEntry
}

func (s *stubAuditWriter) Record(_ context.Context, e *repository.AuditEntry) error {
	s.entries = append(s.entries, *e)
	return nil
}

func writeTestDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestProcessor(rec Recognizer, flags FlagWriter, audit AuditWriter) *Processor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProcessor(rec, docparse.NewRegistry(nil, logger), flags, audit, logger)
}

func TestProcessFileVerifiesValidLicense(t *testing.T) {
	rec := &stubRecognizer{text: "NAME: JOHN SMITH\nEXP: 12/25/2030\nCLASS: A"}
	flags := &stubFlagWriter{}
	audit := &stubAuditWriter{}
	p := newTestProcessor(rec, flags, audit)

	loadID := uuid.New()
	res, err := p.ProcessFile(context.Background(), Request{
		LoadID:  loadID,
		Path:    writeTestDoc(t),
		DocType: constants.DocTypeCDL,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if res.State != constants.ParseStateVerified {
		t.Errorf("state = %s, want VERIFIED", res.State)
	}
	if res.FullText != rec.text {
		t.Errorf("full text altered: %q", res.FullText)
	}
	if rec.lastMIME != "application/pdf" {
		t.Errorf("mime = %q", rec.lastMIME)
	}
	if res.Outcome == nil || res.Outcome.Fields["driver_name"] != "John Smith" {
		t.Errorf("outcome = %+v", res.Outcome)
	}

	if len(flags.calls) != 1 {
		t.Fatalf("flag writes = %d, want 1", len(flags.calls))
	}
	call := flags.calls[0]
	if call.loadID != loadID || call.flag != docparse.FlagCDLVerified || !call.value {
		t.Errorf("flag call = %+v", call)
	}

	if len(audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.State != "VERIFIED" || entry.Provider != "datalab" {
		t.Errorf("audit entry = %+v", entry)
	}
	if !strings.Contains(entry.FieldsJSON, "John Smith") {
		t.Errorf("fields json = %s", entry.FieldsJSON)
	}
}

func TestProcessFileRejectsExpiredLicense(t *testing.T) {
	rec := &stubRecognizer{text: "NAME: JOHN SMITH\nEXP: 12/25/2019\nCLASS: A"}
	flags := &stubFlagWriter{}
	p := newTestProcessor(rec, flags, nil)

	res, err := p.ProcessFile(context.Background(), Request{
		LoadID:  uuid.New(),
		Path:    writeTestDoc(t),
		DocType: constants.DocTypeCDL,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.State != constants.ParseStateRejected {
		t.Errorf("state = %s, want REJECTED", res.State)
	}
	if len(flags.calls) != 1 || flags.calls[0].value {
		t.Errorf("flag calls = %+v, want one false write", flags.calls)
	}
}

func TestProcessFileWithoutLoadSkipsFlags(t *testing.T) {
	rec := &stubRecognizer{text: "NAME: JOHN SMITH\nEXP: 12/25/2030"}
	flags := &stubFlagWriter{}
	p := newTestProcessor(rec, flags, nil)

	if _, err := p.ProcessFile(context.Background(), Request{
		Path:    writeTestDoc(t),
		DocType: constants.DocTypeCDL,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(flags.calls) != 0 {
		t.Errorf("flag writes = %d, want none without a load id", len(flags.calls))
	}
}

func TestProcessFileUnknownDocTypeStopsAtText(t *testing.T) {
	rec := &stubRecognizer{text: "free-form attachment text"}
	p := newTestProcessor(rec, nil, nil)

	res, err := p.ProcessFile(context.Background(), Request{
		Path:    writeTestDoc(t),
		DocType: constants.DocumentType("BANK_STATEMENT"),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.State != constants.ParseStateTextNormalized {
		t.Errorf("state = %s, want TEXT_NORMALIZED", res.State)
	}
	if res.Outcome != nil {
		t.Error("no parser means no outcome")
	}
	if res.FullText != "free-form attachment text" {
		t.Errorf("full text = %q", res.FullText)
	}
}

func TestProcessFileLogsRequestAndLoadIDs(t *testing.T) {
	rec := &stubRecognizer{text: "NAME: JOHN SMITH\nEXP: 12/25/2030\nCLASS: A"}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p := NewProcessor(rec, docparse.NewRegistry(nil, logger), nil, nil, logger)

	loadID := uuid.New()
	ctx := common.WithRequestID(context.Background(), "req-f81d4fae")
	ctx = common.WithLoadID(ctx, loadID.String())

	if _, err := p.ProcessFile(ctx, Request{
		Path:    writeTestDoc(t),
		DocType: constants.DocTypeCDL,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}

	logs := buf.String()
	if !strings.Contains(logs, "request_id=req-f81d4fae") {
		t.Errorf("pipeline logs missing request id:\n%s", logs)
	}
	if !strings.Contains(logs, "load_id="+loadID.String()) {
		t.Errorf("pipeline logs missing load id:\n%s", logs)
	}

	// a bare context carries neither attribute
	buf.Reset()
	if _, err := p.ProcessFile(context.Background(), Request{
		Path:    writeTestDoc(t),
		DocType: constants.DocTypeCDL,
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if strings.Contains(buf.String(), "request_id=") {
		t.Errorf("unexpected request id without context value:\n%s", buf.String())
	}
}

func TestProcessFileUnsupportedExtension(t *testing.T) {
	p := newTestProcessor(&stubRecognizer{}, nil, nil)
	_, err := p.ProcessFile(context.Background(), Request{Path: "doc.xyz", DocType: constants.DocTypeCDL})
	if err == nil {
		t.Error("unknown extension should fail before recognition")
	}
}

func TestProcessFileRecognitionFailure(t *testing.T) {
	rec := &stubRecognizer{err: ocr.ErrProcessing}
	p := newTestProcessor(rec, nil, nil)

	res, err := p.ProcessFile(context.Background(), Request{
		Path:    writeTestDoc(t),
		DocType: constants.DocTypeCDL,
	})
	if err == nil {
		t.Fatal("recognition failure should surface")
	}
	if res == nil || res.State != constants.ParseStateReceived {
		t.Errorf("result = %+v, want RECEIVED state preserved", res)
	}
}
