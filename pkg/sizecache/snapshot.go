package sizecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// snapshotVersion is bumped whenever the measurement method changes, so that
// sizes measured differently are not mixed.
const snapshotVersion = 1

// ErrCorruptSnapshot is returned when a snapshot cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt size cache snapshot")

type snapshotRecord struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	Gzip int64  `json:"gzip"`
}

type snapshot struct {
	Version int              `json:"version"`
	Entries []snapshotRecord `json:"entries"`
}

// readSnapshot decodes an lz4-framed JSON snapshot. Records are ordered from
// least to most recently used.
func readSnapshot(path string) ([]snapshotRecord, error) {
	//nolint:gosec // path is built from the configured cache directory.
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var snap snapshot

	decodeErr := json.NewDecoder(lz4.NewReader(file)).Decode(&snap)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, decodeErr)
	}

	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorruptSnapshot, snap.Version)
	}

	return snap.Entries, nil
}

// writeSnapshot replaces the snapshot atomically.
func writeSnapshot(path string, records []snapshotRecord) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, snapshotFile+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	tmpName := tmp.Name()

	err = encodeSnapshot(tmp, records)
	closeErr := tmp.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return err
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}

func encodeSnapshot(file *os.File, records []snapshotRecord) error {
	zw := lz4.NewWriter(file)

	err := json.NewEncoder(zw).Encode(snapshot{Version: snapshotVersion, Entries: records})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}

	return nil
}
