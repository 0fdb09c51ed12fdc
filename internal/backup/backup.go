// Package backup writes JSON snapshots of the herd store to a blob store and
// reads them back.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"herdcore/internal/blob"
	"herdcore/internal/infra/persistence/memory"
)

const keyLayout = "20060102T150405.000000000Z"

// Source exposes the full state of a store.
type Source interface {
	ExportState() memory.Snapshot
}

// Target accepts a restored state.
type Target interface {
	ImportState(memory.Snapshot)
}

// flusher is implemented by durable stores that persist imported state.
type flusher interface {
	Flush(ctx context.Context) error
}

// Options tune a Manager. Keep is the number of snapshots retained after
// each backup; zero keeps all of them.
type Options struct {
	Prefix string
	Keep   int
	Now    func() time.Time
	Logger *zap.Logger
}

// Manager snapshots a Source into a blob store.
type Manager struct {
	source Source
	store  blob.Store
	prefix string
	keep   int
	now    func() time.Time
	logger *zap.Logger
}

// New constructs a Manager.
func New(source Source, store blob.Store, opts Options) *Manager {
	if opts.Prefix == "" {
		opts.Prefix = "backups/"
	}
	if !strings.HasSuffix(opts.Prefix, "/") {
		opts.Prefix += "/"
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{source: source, store: store, prefix: opts.Prefix, keep: opts.Keep, now: opts.Now, logger: opts.Logger}
}

// Snapshot exports the current state, uploads it and prunes old snapshots.
func (m *Manager) Snapshot(ctx context.Context) (blob.Info, error) {
	state := m.source.ExportState()
	payload, err := json.Marshal(state)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := m.prefix + "herdcore-" + m.now().UTC().Format(keyLayout) + ".json"
	info, err := m.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"animals": strconv.Itoa(len(state.Animals)),
			"groups":  strconv.Itoa(len(state.Groups)),
			"events":  strconv.Itoa(len(state.Events)),
			"moves":   strconv.Itoa(len(state.Moves)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("upload snapshot: %w", err)
	}
	m.logger.Info("snapshot stored", zap.String("key", info.Key), zap.Int64("size", info.Size), zap.String("driver", string(m.store.Driver())))
	if _, err := m.Prune(ctx); err != nil {
		return info, err
	}
	return info, nil
}

// List returns the stored snapshots, oldest first.
func (m *Manager) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := m.store.List(ctx, m.prefix)
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Prune deletes all but the newest Keep snapshots and reports how many went.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.keep <= 0 {
		return 0, nil
	}
	infos, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(infos)-removed > m.keep {
		key := infos[removed].Key
		if _, err := m.store.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("prune %s: %w", key, err)
		}
		m.logger.Debug("snapshot pruned", zap.String("key", key))
		removed++
	}
	return removed, nil
}

// Restore loads the snapshot at key, or the newest one when key is empty,
// into target and flushes durable targets.
func (m *Manager) Restore(ctx context.Context, key string, target Target) (blob.Info, error) {
	if key == "" {
		infos, err := m.List(ctx)
		if err != nil {
			return blob.Info{}, err
		}
		if len(infos) == 0 {
			return blob.Info{}, fmt.Errorf("no snapshot under %s: %w", m.prefix, blob.ErrNotFound)
		}
		key = infos[len(infos)-1].Key
	}
	info, body, err := m.store.Get(ctx, key)
	if err != nil {
		return blob.Info{}, err
	}
	defer func() { _ = body.Close() }()
	var state memory.Snapshot
	if err := json.NewDecoder(body).Decode(&state); err != nil {
		return blob.Info{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	target.ImportState(state)
	if f, ok := target.(flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return blob.Info{}, fmt.Errorf("persist restored snapshot: %w", err)
		}
	}
	m.logger.Info("snapshot restored", zap.String("key", key))
	return info, nil
}

// IsMissing reports whether err means no snapshot exists.
func IsMissing(err error) bool {
	return errors.Is(err, blob.ErrNotFound)
}
