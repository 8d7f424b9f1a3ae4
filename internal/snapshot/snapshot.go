// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package snapshot implements the snapshot storage and coordinator of
// spec.md §4.5: atomic, session-scoped snapshots with a purpose tag,
// pruning, and recovery.
//
// Writes follow the teacher's atomic-write idiom (write to a temp file,
// then os.Rename over the final name, seen in
// pkg/server/multi_agent.go's pattern writer) with an fsync added before
// the rename so a crash mid-write can never leave a torn snapshot.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/checkpoint"
	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"github.com/Tecet/OLLM-CLI-sub019/internal/runtimeerr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Purpose classifies why a snapshot was taken.
type Purpose string

const (
	PurposeRecovery Purpose = "recovery"
	PurposeRollback Purpose = "rollback"
	PurposeEmergency Purpose = "emergency"
)

// ConversationState is the self-contained payload a snapshot carries —
// restoring it reproduces the session without any external references
// (spec.md §3 Snapshot invariant).
type ConversationState struct {
	Messages    []message.Message      `json:"messages"`
	Checkpoints []*checkpoint.Checkpoint `json:"checkpoints"`
	Goal        *checkpoint.Goal        `json:"goal,omitempty"`
	Metadata    map[string]any          `json:"metadata,omitempty"`
}

// Snapshot is an atomic full copy of a session's conversation state.
type Snapshot struct {
	ID                string            `json:"id"`
	SessionID         string            `json:"session_id"`
	Timestamp         time.Time         `json:"timestamp"`
	Purpose           Purpose           `json:"purpose"`
	ConversationState ConversationState `json:"conversation_state"`
}

// Store persists snapshots under a root directory, one subdirectory per
// session, matching spec.md §6's
// context-snapshots/<session_id>/<purpose>-<timestamp>.json layout.
type Store struct {
	root string

	// writeMu serializes writes per session: "one in flight" (spec.md §5).
	writeMu sync.Map // sessionID -> *sync.Mutex
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

func (s *Store) lockFor(sessionID string) *sync.Mutex {
	v, _ := s.writeMu.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func filename(purpose Purpose, ts time.Time) string {
	return fmt.Sprintf("%s-%d.json", purpose, ts.UnixNano())
}

// Save atomically persists a snapshot: marshal -> write temp file ->
// fsync -> rename over the final name. Any partial write is discarded on
// read because it never reaches the final name.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	mu := s.lockFor(snap.SessionID)
	mu.Lock()
	defer mu.Unlock()

	dir := s.sessionDir(snap.SessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return runtimeerr.SnapshotIO(snap.Purpose != PurposeEmergency, fmt.Errorf("mkdir: %w", err))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return runtimeerr.SnapshotIO(snap.Purpose != PurposeEmergency, fmt.Errorf("marshal: %w", err))
	}

	final := filepath.Join(dir, filename(snap.Purpose, snap.Timestamp))
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return runtimeerr.SnapshotIO(snap.Purpose != PurposeEmergency, fmt.Errorf("open temp: %w", err))
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return runtimeerr.SnapshotIO(snap.Purpose != PurposeEmergency, fmt.Errorf("write temp: %w", err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return runtimeerr.SnapshotIO(snap.Purpose != PurposeEmergency, fmt.Errorf("fsync: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return runtimeerr.SnapshotIO(snap.Purpose != PurposeEmergency, fmt.Errorf("close temp: %w", err))
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return runtimeerr.SnapshotIO(snap.Purpose != PurposeEmergency, fmt.Errorf("rename: %w", err))
	}

	rtlog.Info("snapshot saved", zap.String("session_id", snap.SessionID), zap.String("purpose", string(snap.Purpose)), zap.String("id", snap.ID))
	return nil
}

// New builds a snapshot with a fresh id and timestamp.
func New(sessionID string, purpose Purpose, state ConversationState) *Snapshot {
	return &Snapshot{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		Timestamp:         time.Now(),
		Purpose:           purpose,
		ConversationState: state,
	}
}

// List returns every snapshot for a session and purpose, newest first.
// Reads are unordered on disk but always consistent with the last
// completed rename (spec.md §5).
func (s *Store) List(sessionID string, purpose Purpose) ([]*Snapshot, error) {
	dir := s.sessionDir(sessionID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	prefix := string(purpose) + "-"
	var out []*Snapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		snap, err := loadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			rtlog.Warn("snapshot: skipping unreadable file", zap.String("path", e.Name()), zap.Error(err))
			continue
		}
		out = append(out, snap)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Latest returns the most recent snapshot of the given purpose, if any.
func (s *Store) Latest(sessionID string, purpose Purpose) (*Snapshot, bool, error) {
	all, err := s.List(sessionID, purpose)
	if err != nil {
		return nil, false, err
	}
	if len(all) == 0 {
		return nil, false, nil
	}
	return all[0], true, nil
}

// Get loads a specific snapshot by id, searching all purposes.
func (s *Store) Get(sessionID, id string) (*Snapshot, bool, error) {
	for _, purpose := range []Purpose{PurposeRecovery, PurposeRollback, PurposeEmergency} {
		all, err := s.List(sessionID, purpose)
		if err != nil {
			return nil, false, err
		}
		for _, snap := range all {
			if snap.ID == id {
				return snap, true, nil
			}
		}
	}
	return nil, false, nil
}

func loadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Prune deletes snapshots of the given purpose older than maxAge or
// beyond maxCount most-recent (spec.md §4.5: "keep at most K snapshots
// per purpose per session and prune any older than the configured
// horizon").
func (s *Store) Prune(sessionID string, purpose Purpose, maxCount int, maxAge time.Duration) error {
	all, err := s.List(sessionID, purpose)
	if err != nil {
		return err
	}

	now := time.Now()
	dir := s.sessionDir(sessionID)

	var toDelete []*Snapshot
	for i, snap := range all {
		if i >= maxCount || now.Sub(snap.Timestamp) > maxAge {
			toDelete = append(toDelete, snap)
		}
	}

	for _, snap := range toDelete {
		path := filepath.Join(dir, filename(snap.Purpose, snap.Timestamp))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			rtlog.Warn("snapshot: prune failed to remove file", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

// StripNanos is a helper for byte-identical round-trip tests: it zeroes
// the timestamp so two snapshots taken at different wall-clock moments
// can be compared "modulo timestamps" per spec.md §8.
func StripNanos(snap *Snapshot) *Snapshot {
	clone := *snap
	clone.Timestamp = time.Time{}
	return &clone
}

// ParseTimestamp extracts the UnixNano timestamp encoded in a snapshot
// filename, used by tests that need to assert ordering without relying
// on filesystem mtimes.
func ParseTimestamp(filename string) (time.Time, error) {
	base := strings.TrimSuffix(filename, ".json")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return time.Time{}, fmt.Errorf("snapshot: malformed filename %q", filename)
	}
	nanos, err := strconv.ParseInt(base[idx+1:], 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos), nil
}
