package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/freight-docs/constants"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDocTypeForPath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		rel  string
		want constants.DocumentType
		ok   bool
	}{
		{"cdl/smith.pdf", constants.DocTypeCDL, true},
		{"insurance/acme.png", constants.DocTypeCOI, true},
		{"RateCon/load-1042.pdf", constants.DocTypeRateCon, true},
		{"pod/2026/jan/receipt.jpg", constants.DocTypePOD, true},
		{"misc/unknown.pdf", "", false},
		{"loose.pdf", "", false},
	}
	for _, tc := range tests {
		got, ok := DocTypeForPath(root, filepath.Join(root, filepath.FromSlash(tc.rel)))
		if ok != tc.ok || got != tc.want {
			t.Errorf("DocTypeForPath(%q) = %q, %v; want %q, %v", tc.rel, got, ok, tc.want, tc.ok)
		}
	}

	if _, ok := DocTypeForPath(root, "/somewhere/else/cdl/smith.pdf"); ok {
		t.Error("path outside root should not resolve")
	}
}

func TestScanInbox(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "cdl", "smith.pdf"))
	touch(t, filepath.Join(root, "coi", "acme.jpg"))
	touch(t, filepath.Join(root, "cdl", "notes.txt"))      // wrong extension
	touch(t, filepath.Join(root, "stray.pdf"))             // no type folder
	touch(t, filepath.Join(root, ".staging", "tmp.pdf"))   // hidden dir
	touch(t, filepath.Join(root, "pod", ".partial.png"))   // hidden file

	stats, err := ScanInbox(root, nil)
	if err != nil {
		t.Fatalf("ScanInbox: %v", err)
	}
	if stats.Scanned != 4 {
		t.Errorf("Scanned = %d, want 4", stats.Scanned)
	}
	if stats.Matched != 2 {
		t.Errorf("Matched = %d, want 2", stats.Matched)
	}
	if stats.Untyped != 1 {
		t.Errorf("Untyped = %d, want 1", stats.Untyped)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
}

func TestScanInboxRequiresRoot(t *testing.T) {
	if _, err := ScanInbox("  ", nil); err == nil {
		t.Fatal("expected error for blank root")
	}
}

func TestAllowed(t *testing.T) {
	exts := constants.AllowedExtensions
	if !allowed("/inbox/cdl/a.PDF", exts) {
		t.Error("uppercase extension should be allowed")
	}
	if allowed("/inbox/cdl/a.txt", exts) {
		t.Error("txt should not be allowed")
	}
	if allowed("/inbox/cdl/.hidden.pdf", exts) {
		t.Error("hidden file should not be allowed")
	}
}
