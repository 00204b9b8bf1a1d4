package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/llc-993/matching-core/internal/pipeline"
)

const (
	filePrefix = "snapshot_"
	fileSuffix = ".bin"
)

// Store is a directory of one file per snapshot, named snapshot_<seq>.bin.
// The latest snapshot is whichever file has the largest numeric seq, not
// whichever was written most recently by mtime: a restored seq counter is
// the only thing recovery needs to resume journaling from the right point.
type Store struct {
	dir string
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(seq uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d%s", filePrefix, seq, fileSuffix))
}

// Save writes state as the snapshot for seq through a temporary file
// renamed into place; an existing snapshot for the same seq is replaced.
func (s *Store) Save(seq uint64, state pipeline.State) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}
	tmp := s.path(seq) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path(seq)); err != nil {
		return fmt.Errorf("snapshot: rename %s: %w", tmp, err)
	}
	return nil
}

// Load reads the snapshot written for seq.
func (s *Store) Load(seq uint64) (pipeline.State, error) {
	data, err := os.ReadFile(s.path(seq))
	if err != nil {
		return pipeline.State{}, fmt.Errorf("snapshot: read %s: %w", s.path(seq), err)
	}
	return Decode(data)
}

// LatestSeq scans the store's directory for the largest seq with a
// snapshot file, returning ok=false if none exist yet.
func (s *Store) LatestSeq() (seq uint64, ok bool, err error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, false, fmt.Errorf("snapshot: read dir %s: %w", s.dir, err)
	}

	found := false
	var best uint64
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		numeric := name[len(filePrefix) : len(name)-len(fileSuffix)]
		n, err := strconv.ParseUint(numeric, 10, 64)
		if err != nil {
			continue
		}
		if !found || n > best {
			best = n
			found = true
		}
	}
	return best, found, nil
}

// LoadLatest loads the highest-seq snapshot in the store, returning
// ok=false if the store is empty.
func (s *Store) LoadLatest() (state pipeline.State, seq uint64, ok bool, err error) {
	seq, found, err := s.LatestSeq()
	if err != nil || !found {
		return pipeline.State{}, 0, false, err
	}
	state, err = s.Load(seq)
	if err != nil {
		return pipeline.State{}, 0, false, err
	}
	return state, seq, true, nil
}
