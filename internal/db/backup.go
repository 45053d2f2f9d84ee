package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	backupPrefix = "products-"
	// Fixed width so names sort chronologically, even within one second.
	backupStamp  = "20060102T150405.000000000"
)

// BackupTo creates a consistent SQLite snapshot at dstPath using VACUUM INTO.
// This works even when WAL mode is enabled.
func (d *DB) BackupTo(ctx context.Context, dstPath string) error {
	// Escape single quotes for SQLite string literal
	escaped := strings.ReplaceAll(dstPath, "'", "''")
	_, err := d.sql.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s';", escaped))
	return err
}

// Snapshot writes a timestamped backup into dir and prunes all but the newest
// keep snapshots. keep <= 0 disables pruning.
func (d *DB) Snapshot(ctx context.Context, dir string, keep int, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s%s-%s.db", backupPrefix, now.UTC().Format(backupStamp), uuid.NewString()[:8])
	dst := filepath.Join(dir, name)
	if err := d.BackupTo(ctx, dst); err != nil {
		return "", fmt.Errorf("backup to %s: %w", dst, err)
	}
	if keep > 0 {
		if err := pruneBackups(dir, keep); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

func pruneBackups(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) <= keep {
		return nil
	}
	// Timestamp prefix sorts chronologically.
	sort.Strings(names)
	for _, n := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, n)); err != nil {
			return err
		}
	}
	return nil
}
