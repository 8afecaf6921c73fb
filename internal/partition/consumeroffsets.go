package partition

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/flowlog/partitionstore/internal/perrors"
	"github.com/flowlog/partitionstore/internal/persister"
	"go.uber.org/zap"
)

// ConsumerKind distinguishes a standalone consumer's bookmark from a
// consumer group's.
type ConsumerKind int

const (
	Consumer ConsumerKind = iota
	ConsumerGroup
)

func (k ConsumerKind) String() string {
	if k == ConsumerGroup {
		return "consumer_group"
	}
	return "consumer"
}

// ConsumerOffset is one persisted bookmark: kind + consumer_id + offset,
// plus the file path it lives at.
type ConsumerOffset struct {
	Kind       ConsumerKind
	ConsumerID uint32
	Offset     uint64
	Path       string
}

// saveConsumerOffset overwrites offset.Path with the 8-byte
// little-endian value, through the Persister.
func saveConsumerOffset(p *persister.Persister, offset ConsumerOffset) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], offset.Offset)
	return p.Overwrite(offset.Path, buf[:])
}

// loadConsumerOffsets enumerates dir; for each regular file whose name
// parses as a u32 it reads the 8-byte little-endian offset. A failure to
// read the directory itself is returned as CannotReadConsumerOffsets; a
// metadata failure on one entry ends the scan and the offsets collected
// so far are returned without an error; per-entry errors (bad name,
// unreadable file) are logged and that entry is skipped.
func loadConsumerOffsets(kind ConsumerKind, dir string, log *zap.SugaredLogger) ([]ConsumerOffset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, perrors.New(perrors.CannotReadConsumerOffsets, 0, 0, 0, err).WithPath(dir)
	}

	offsets := make([]ConsumerOffset, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// Metadata failure for this entry breaks the loop entirely,
			// matching the source's documented (if surprising) behavior.
			break
		}
		if info.IsDir() {
			continue
		}

		consumerID, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			log.Warnw("skipping consumer offset file with unparseable name", "name", e.Name(), "dir", dir)
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil || len(data) < 8 {
			readErr := perrors.New(perrors.CannotReadFile, 0, 0, 0, err).WithPath(path)
			log.Warnw("skipping unreadable consumer offset file", "path", path, "error", readErr)
			continue
		}

		offsets = append(offsets, ConsumerOffset{
			Kind:       kind,
			ConsumerID: uint32(consumerID),
			Offset:     binary.LittleEndian.Uint64(data),
			Path:       path,
		})
	}

	sort.Slice(offsets, func(i, j int) bool { return offsets[i].ConsumerID < offsets[j].ConsumerID })
	return offsets, nil
}

// deleteConsumerOffsets recursively removes dir; an absent directory is
// not an error.
func deleteConsumerOffsets(p *persister.Persister, dir string) error {
	if err := p.RemoveDirAll(dir); err != nil {
		return perrors.New(perrors.CannotDeleteConsumerOffsetsDirectory, 0, 0, 0, err).WithPath(dir)
	}
	return nil
}

// deleteConsumerOffset removes path; an absent file is not an error.
func deleteConsumerOffset(p *persister.Persister, path string) error {
	if err := p.RemoveFile(path); err != nil {
		return perrors.New(perrors.CannotDeleteConsumerOffsetFile, 0, 0, 0, err).WithPath(path)
	}
	return nil
}
