package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/freight-docs/constants"
)

type WatchConfig struct {
	Root        string              // inbox directory, watched recursively
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	InitialScan bool                // emit files already present under Root
	SettleTime  time.Duration       // coalesce write bursts before emitting
}

// StartWatcher watches the inbox and emits paths of documents ready to parse.
// A file is emitted once its writes have settled for cfg.SettleTime, so a
// half-copied scan is not picked up mid-transfer.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, nil, errors.New("inbox root is required")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watch.create_failed", "error", err)
		return nil, nil, err
	}

	// Watch the root and every subdirectory; emit existing files if asked.
	walkErr := filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if isHidden(path) && path != cfg.Root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && allowed(path, cfg.AllowedExts) {
			select {
			case evCh <- path:
			default:
				logger.Warn("watch.backlog_full", "path", path)
			}
		}
		return nil
	})
	if walkErr != nil {
		logger.Error("watch.add_root_failed", "root", cfg.Root, "error", walkErr)
		_ = w.Close()
		return nil, nil, walkErr
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() { _ = w.Close() }()

		// pending and evCh are only touched on this goroutine: the settle
		// timer signals through flush instead of flushing itself, so an
		// expiring timer cannot race the event loop or a channel close.
		var timer *time.Timer
		flush := make(chan struct{}, 1)
		pending := map[string]struct{}{}

		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		sendPending := func() {
			for p := range pending {
				select {
				case evCh <- p:
				default:
					logger.Warn("watch.backlog_full", "path", p)
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-flush:
				sendPending()
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op.Has(fsnotify.Create) && !isHidden(e.Name) {
					// New directories (a doc-type folder dropped into the
					// inbox) need their own watch; w.Add on a plain file is
					// harmless and its error ignorable.
					_ = w.Add(e.Name)
				}

				if allowed(e.Name, cfg.AllowedExts) && e.Op.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
					pending[e.Name] = struct{}{}
					if cfg.SettleTime > 0 {
						if timer != nil {
							timer.Stop()
						}
						timer = time.AfterFunc(cfg.SettleTime, func() {
							select {
							case flush <- struct{}{}:
							default:
							}
						})
					} else {
						sendPending()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	logger.Info("watch.started", "root", cfg.Root, "settle", cfg.SettleTime.String())
	return evCh, errCh, nil
}

func allowed(path string, exts map[string]struct{}) bool {
	if isHidden(path) {
		return false
	}
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
