package util

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// CloseLog closes c and logs a failure instead of returning it. Use it in
// defers on paths whose result no longer depends on the close.
func CloseLog(c io.Closer, log *slog.Logger, what string) {
	if err := c.Close(); err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("close failed", "what", what, "err", err)
	}
}

// SyncDir fsyncs a directory so a rename inside it survives a crash.
func SyncDir(dir string) error {
	d, err := os.Open(filepath.Clean(dir))
	if err != nil {
		return err
	}
	serr := d.Sync()
	cerr := d.Close()
	if serr != nil {
		return serr
	}
	return cerr
}
