// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

// Package store provides the file-backed player record store: an
// in-memory table persisted as versioned YAML with backup-before-
// overwrite rotation, corruption recovery, and a one-time migration
// from the legacy flat-binary format.
package store

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/keywarden/keywarden/internal/auth"
)

// CurrentVersion tags the on-disk format. Version 1 was the legacy
// flat-binary layout handled by MigrateLegacy.
const CurrentVersion = 2

// BackupSuffix and FinalBackupSuffix name the rotation files next to the
// primary store file.
const (
	BackupSuffix = ".bak"
	// A backup used for recovery is renamed aside so a second corruption
	// cannot replay it.
	FinalBackupSuffix = ".bak.final"
)

// fileFormat is the serialized shape of the store.
type fileFormat struct {
	Version int            `yaml:"version"`
	Players []*auth.Record `yaml:"players"`
}

// FileStore implements auth.RecordStore. It exclusively owns the
// in-memory record table and the on-disk file handles during save/load.
type FileStore struct {
	mu       sync.Mutex
	path     string
	registry *auth.Registry
	window   time.Duration
	now      func() time.Time
	records  map[string]*auth.Record
}

// Open creates a file store rooted at path. window is the
// reauthentication fast-path window; registry resolves record methods
// during authentication. Call Load before first use.
func Open(path string, registry *auth.Registry, window time.Duration) *FileStore {
	return &FileStore{
		path:     path,
		registry: registry,
		window:   window,
		now:      time.Now,
		records:  make(map[string]*auth.Record),
	}
}

// Get implements auth.RecordStore.
func (s *FileStore) Get(playerID string) (*auth.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[auth.Key(playerID)]
	return rec, ok
}

// Contains implements auth.RecordStore.
func (s *FileStore) Contains(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[auth.Key(playerID)]
	return ok
}

// Count returns the number of records.
func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// All returns a copy of the records, sorted by player id.
func (s *FileStore) All() []auth.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Add implements auth.RecordStore.
func (s *FileStore) Add(playerID, address string, method auth.Method, args []string) auth.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := auth.Key(playerID)
	if _, ok := s.records[key]; ok {
		return auth.AlreadyRegistered
	}
	if method == nil {
		return auth.InvalidMethod
	}

	rec := &auth.Record{
		PlayerID:    playerID,
		LastAddress: address,
		LastSeenAt:  s.now().UnixMilli(),
		Method:      method.Name(),
	}
	s.records[key] = rec

	if out := method.Register(rec, args); out != auth.Success {
		// Roll the provisional record back; registration never leaves a
		// half-built record behind.
		delete(s.records, key)
		return out
	}

	s.persist()
	return auth.Success
}

// Authenticate implements auth.RecordStore.
func (s *FileStore) Authenticate(playerID string, args []string) auth.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[auth.Key(playerID)]
	if !ok {
		return auth.NotRegistered
	}
	if rec.Authenticated {
		return auth.AlreadyAuthenticated
	}
	method := s.registry.Resolve(rec.Method)
	if method == nil {
		return auth.InvalidMethod
	}
	return method.Authenticate(rec, args)
}

// Remove implements auth.RecordStore.
func (s *FileStore) Remove(playerID string, requireAuthenticated bool) auth.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := auth.Key(playerID)
	rec, ok := s.records[key]
	if !ok {
		return auth.NotRegistered
	}
	if requireAuthenticated && !rec.Authenticated {
		return auth.NeedAuthentication
	}

	delete(s.records, key)
	s.persist()
	return auth.Success
}

// Connecting implements auth.RecordStore.
func (s *FileStore) Connecting(playerID, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[auth.Key(playerID)]
	if !ok {
		return
	}
	if strings.EqualFold(rec.LastAddress, address) &&
		s.now().UnixMilli()-rec.LastSeenAt < s.window.Milliseconds() {
		rec.Authenticated = true
		rec.LastAddress = address
		slog.Info("reauthenticated on reconnect", "player", playerID, "address", address)
	}
}

// Disconnect implements auth.RecordStore.
func (s *FileStore) Disconnect(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[auth.Key(playerID)]
	if !ok {
		return
	}
	rec.Authenticated = false
	rec.LastSeenAt = s.now().UnixMilli()
	s.persist()
}

// Save implements auth.RecordStore. The previous store file is rotated
// to the backup location before the new contents are written.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *FileStore) save() error {
	slog.Info("saving player records", "count", len(s.records))

	backup := s.path + BackupSuffix
	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to delete old backup", "path", backup, "error", err)
	}
	if err := os.Rename(s.path, backup); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to rotate store to backup", "path", s.path, "error", err)
	}

	out := fileFormat{Version: CurrentVersion}
	snap := s.snapshot()
	for i := range snap {
		out.Players = append(out.Players, &snap[i])
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return oops.In("store").Code("STORE_ENCODE_FAILED").Wrap(err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return oops.In("store").Code("STORE_WRITE_FAILED").
			With("path", s.path).
			Wrap(err)
	}
	return nil
}

// persist saves after a mutation. Write failures are logged but do not
// abort the in-memory transition; the next successful save will include
// the record.
func (s *FileStore) persist() {
	if err := s.save(); err != nil {
		slog.Error("failed to persist player records", "error", err)
	}
}

// Load reads the store from disk. A missing primary starts an empty
// table. A corrupt or version-mismatched primary is deleted and the
// backup is promoted (renamed aside afterward) before one retry.
// Corruption is never fatal: when the backup is missing or also
// corrupt, Load degrades to an empty table with a loud warning so the
// server still starts.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; ; attempt++ {
		records, err := s.read()
		if err == nil {
			s.records = records
			slog.Info("player records loaded", "count", len(records))
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			s.records = make(map[string]*auth.Record)
			return nil
		}

		slog.Error("player record store is corrupt", "path", s.path, "error", err)
		if attempt > 0 {
			slog.Error("recovered backup is also corrupt, starting with an empty record table",
				"path", s.path)
			s.records = make(map[string]*auth.Record)
			return nil
		}
		if !s.recoverFromBackup() {
			s.records = make(map[string]*auth.Record)
			return nil
		}
	}
}

// read parses the primary file into a fresh record table.
func (s *FileStore) read() (map[string]*auth.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oops.Wrap(err)
		}
		return nil, oops.In("store").Code("STORE_READ_FAILED").Wrap(err)
	}

	var in fileFormat
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, oops.In("store").Code("STORE_DECODE_FAILED").Wrap(err)
	}
	if in.Version != CurrentVersion {
		return nil, oops.In("store").Code("STORE_VERSION_MISMATCH").
			With("found", in.Version).
			With("want", CurrentVersion).
			Errorf("store version mismatch")
	}

	records := make(map[string]*auth.Record, len(in.Players))
	for _, rec := range in.Players {
		records[auth.Key(rec.PlayerID)] = rec
	}
	return records, nil
}

// recoverFromBackup deletes the corrupt primary and promotes the backup.
// The used backup is renamed to the final-backup name so a second
// corruption cannot reuse it. Returns false when there is no backup.
func (s *FileStore) recoverFromBackup() bool {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to delete corrupt store", "path", s.path, "error", err)
	}

	backup := s.path + BackupSuffix
	if _, err := os.Stat(backup); err != nil {
		slog.Warn("no backup available, starting with an empty record table", "path", backup)
		return false
	}

	if err := copyFile(backup, s.path); err != nil {
		slog.Error("failed to promote backup", "path", backup, "error", err)
		return false
	}
	if err := os.Rename(backup, s.path+FinalBackupSuffix); err != nil {
		slog.Warn("failed to retire used backup", "path", backup, "error", err)
	}
	slog.Info("recovered player records from backup", "path", backup)
	return true
}

// snapshot copies the table, sorted by key, for serialization and tests.
func (s *FileStore) snapshot() []auth.Record {
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]auth.Record, 0, len(keys))
	for _, key := range keys {
		out = append(out, *s.records[key])
	}
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return oops.Wrap(err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return oops.Wrap(err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return oops.Wrap(err)
	}
	return oops.Wrap(out.Sync())
}
