// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package store

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/keywarden/keywarden/internal/auth"
)

// LegacyVersion tags the flat-binary format that predates the YAML
// store: a big-endian int32 version, an int32 record count, then per
// record {UTF name, bool authenticated, int64 lastSeen, UTF address,
// UTF secret, int32 method id}.
const LegacyVersion = 1

// legacyMethods maps the old numeric method ids onto method names.
// Unknown ids are skipped during migration.
var legacyMethods = map[int32]string{
	1: "key",
	2: "totp",
}

// MigrateLegacy converts a legacy store file at path into the current
// format, in place. It is a no-op when the file is missing or already in
// the current format. Returns whether a migration happened.
func MigrateLegacy(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, oops.In("store").Code("LEGACY_READ_FAILED").Wrap(err)
	}

	// The legacy file opens with the int32 version tag; YAML never
	// starts with NUL bytes.
	if len(data) < 8 || binary.BigEndian.Uint32(data) != LegacyVersion {
		return false, nil
	}

	records, err := decodeLegacy(data[4:])
	if err != nil {
		return false, err
	}

	out := fileFormat{Version: CurrentVersion, Players: records}
	encoded, err := yaml.Marshal(out)
	if err != nil {
		return false, oops.In("store").Code("LEGACY_ENCODE_FAILED").Wrap(err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return false, oops.In("store").Code("LEGACY_WRITE_FAILED").
			With("path", path).
			Wrap(err)
	}

	slog.Info("migrated legacy player record store", "path", path, "count", len(records))
	return true, nil
}

func decodeLegacy(data []byte) ([]*auth.Record, error) {
	r := bytes.NewReader(data)

	var count int32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, oops.In("store").Code("LEGACY_DECODE_FAILED").Wrap(err)
	}

	records := make([]*auth.Record, 0, count)
	for range count {
		rec, methodID, err := readLegacyRecord(r)
		if err != nil {
			return nil, err
		}
		name, ok := legacyMethods[methodID]
		if !ok {
			slog.Warn("skipping record with unknown legacy method id",
				"player", rec.PlayerID, "method_id", methodID)
			continue
		}
		rec.Method = name
		records = append(records, rec)
	}
	return records, nil
}

func readLegacyRecord(r *bytes.Reader) (*auth.Record, int32, error) {
	rec := &auth.Record{}

	var err error
	if rec.PlayerID, err = readLegacyString(r); err != nil {
		return nil, 0, err
	}
	if err = binary.Read(r, binary.BigEndian, &rec.Authenticated); err != nil {
		return nil, 0, oops.In("store").Code("LEGACY_DECODE_FAILED").Wrap(err)
	}
	if err = binary.Read(r, binary.BigEndian, &rec.LastSeenAt); err != nil {
		return nil, 0, oops.In("store").Code("LEGACY_DECODE_FAILED").Wrap(err)
	}
	if rec.LastAddress, err = readLegacyString(r); err != nil {
		return nil, 0, err
	}
	if rec.Secret, err = readLegacyString(r); err != nil {
		return nil, 0, err
	}

	var methodID int32
	if err = binary.Read(r, binary.BigEndian, &methodID); err != nil {
		return nil, 0, oops.In("store").Code("LEGACY_DECODE_FAILED").Wrap(err)
	}
	return rec, methodID, nil
}

// readLegacyString reads a length-prefixed (uint16, big-endian) string.
func readLegacyString(r *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", oops.In("store").Code("LEGACY_DECODE_FAILED").Wrap(err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", oops.In("store").Code("LEGACY_DECODE_FAILED").Wrap(err)
	}
	return string(buf), nil
}
