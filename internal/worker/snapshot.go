// Package worker contains the background snapshot worker. It listens for
// data change events and periodically writes timestamped JSON exports of
// the aggregate, giving users point-in-time backups beyond the single
// rotating backup slot.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"financeai/internal/events"
	"financeai/internal/store"
)

// maxSnapshots bounds how many snapshot files are kept on disk.
const maxSnapshots = 20

// SnapshotWorker exports the aggregate to timestamped files.
type SnapshotWorker struct {
	store    *store.FinanceStore
	dir      string
	interval time.Duration

	// coalesces bursts of change events into one snapshot
	trigger chan struct{}
}

// NewSnapshotWorker creates a worker writing snapshots into dir.
func NewSnapshotWorker(st *store.FinanceStore, dir string, interval time.Duration) (*SnapshotWorker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotWorker{
		store:    st,
		dir:      dir,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}, nil
}

// HandleChange requests a snapshot in response to a data change event.
// It never blocks, concurrent changes coalesce into a single snapshot.
func (w *SnapshotWorker) HandleChange(msg *events.DataChangedMessage) error {
	slog.Info("Data change received", "kind", msg.Kind, "entity_id", msg.EntityID)
	select {
	case w.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Run writes snapshots until ctx is cancelled, on every interval tick and
// after each change notification.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			case <-w.trigger:
			}

			if _, err := w.WriteSnapshot(ctx); err != nil {
				slog.ErrorContext(ctx, "Snapshot failed", "error", err)
			}
		}
	})

	return g.Wait()
}

// WriteSnapshot exports the aggregate into a new timestamped file and
// prunes old snapshots. Returns the written file path.
func (w *SnapshotWorker) WriteSnapshot(ctx context.Context) (string, error) {
	doc, err := w.store.ExportData(ctx)
	if err != nil {
		return "", fmt.Errorf("export data: %w", err)
	}

	name := fmt.Sprintf("financeai-%s.json", time.Now().UTC().Format("20060102T150405.000"))
	path := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot written", "path", path)

	if err := w.prune(); err != nil {
		slog.WarnContext(ctx, "Snapshot pruning failed", "error", err)
	}

	return path, nil
}

// prune removes the oldest snapshots beyond maxSnapshots.
func (w *SnapshotWorker) prune() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "financeai-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	if len(names) <= maxSnapshots {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-maxSnapshots] {
		if err := os.Remove(filepath.Join(w.dir, name)); err != nil {
			return err
		}
	}
	return nil
}
