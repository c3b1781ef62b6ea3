// Package persist durably records the ring-seq a node last committed to,
// so a restarted node never regresses it and risks two rings forming with
// the same identifier.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package persist

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// RingSeqStore persists a single uint64 ring sequence to one file per node.
type RingSeqStore struct {
	path string
}

// Open prepares a RingSeqStore backed by path. It does not read the file;
// call Load for that.
func Open(path string) *RingSeqStore {
	return &RingSeqStore{path: path}
}

// Load reads the persisted ring-seq. A missing file means this node has
// never committed a ring, so the seq starts at 0.
func (s *RingSeqStore) Load() (uint64, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("persist: read %s: %w", s.path, err)
	}
	if len(data) < 8 {
		return 0, fmt.Errorf("persist: %s truncated (%d bytes)", s.path, len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}

// Save rewrites the persisted ring-seq, via write-tmp-then-rename so a
// crash mid-write can never leave a torn value for Load to trust.
func (s *RingSeqStore) Save(seq uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, seq)

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ring-seq-*.tmp")
	if err != nil {
		return fmt.Errorf("persist: create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("persist: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("persist: rename %s to %s: %w", tmpName, s.path, err)
	}
	return nil
}
