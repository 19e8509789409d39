package ingest

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/freight-docs/constants"
)

// DocTypeForPath resolves the document type from the inbox layout: the first
// directory under root names the type ("inbox/cdl/smith.pdf" -> CDL). Folder
// names go through the same synonym table as API labels, so "insurance/" and
// "coi/" both land on COI.
func DocTypeForPath(root, path string) (constants.DocumentType, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		// file dropped at the inbox root, no type folder
		return "", false
	}
	return constants.CanonicalDocumentType(parts[0])
}

// ScanStats summarizes an inbox walk.
type ScanStats struct {
	Scanned uint32
	Matched uint32
	Untyped uint32 // allowed extension but no recognizable doc-type folder
	Skipped uint32
}

// ScanInbox walks root and reports what a full pass would pick up. Used at
// startup to log backlog size before the watcher starts draining it.
func ScanInbox(root string, exts map[string]struct{}) (ScanStats, error) {
	if strings.TrimSpace(root) == "" {
		return ScanStats{}, errors.New("inbox root is required")
	}
	if exts == nil {
		exts = constants.AllowedExtensions
	}

	var stats ScanStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if isHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !allowed(path, exts) {
			stats.Skipped++
			return nil
		}
		if _, ok := DocTypeForPath(root, path); !ok {
			stats.Untyped++
			return nil
		}
		stats.Matched++
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}
