package segment

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/tysonmote/gommap"
)

var enc = binary.LittleEndian

const (
	offWidth uint64 = 4
	posWidth uint64 = 4
	entWidth        = offWidth + posWidth
)

// index memory-maps a fixed-capacity region of the on-disk offset-index
// file, the same way the teacher's index type does, generalized from
// its 4+8 byte entries to the spec's 4-byte-offset/4-byte-position
// entry pairs.
type index struct {
	file     *os.File
	mMap     gommap.MMap
	size     uint64 // bytes currently in use
	capacity uint64 // bytes the mmap region was truncated to
}

// newIndex opens (creating if needed) the index file at path, truncates
// it to hold capacityEntries entries, and memory-maps it for read/write.
func newIndex(path string, capacityEntries uint64) (*index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	idx := &index{file: f}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	idx.size = uint64(fi.Size())

	capacity := capacityEntries * entWidth
	if capacity == 0 {
		capacity = entWidth
	}
	if uint64(fi.Size()) < capacity {
		if err := f.Truncate(int64(capacity)); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		capacity = uint64(fi.Size())
	}
	idx.capacity = capacity

	idx.mMap, err = gommap.Map(f.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// Read returns the (relative_offset, file_position) entry at logical
// entry index in (0-based); in == -1 reads the last entry.
func (i *index) Read(in int64) (relOffset uint32, pos uint32, err error) {
	if i.size == 0 {
		return 0, 0, io.EOF
	}
	var entryIndex uint64
	if in == -1 {
		entryIndex = (i.size / entWidth) - 1
	} else {
		entryIndex = uint64(in)
	}
	at := entryIndex * entWidth
	if i.size < at+entWidth {
		return 0, 0, io.EOF
	}
	relOffset = enc.Uint32(i.mMap[at : at+offWidth])
	pos = enc.Uint32(i.mMap[at+offWidth : at+entWidth])
	return relOffset, pos, nil
}

// Entries returns every (relative_offset, file_position) pair in order.
func (i *index) Entries() [][2]uint32 {
	count := i.size / entWidth
	out := make([][2]uint32, 0, count)
	for e := uint64(0); e < count; e++ {
		at := e * entWidth
		out = append(out, [2]uint32{
			enc.Uint32(i.mMap[at : at+offWidth]),
			enc.Uint32(i.mMap[at+offWidth : at+entWidth]),
		})
	}
	return out
}

// Write appends one (relative_offset, file_position) entry.
func (i *index) Write(relOffset uint32, pos uint32) error {
	if i.capacity < i.size+entWidth {
		return io.EOF
	}
	enc.PutUint32(i.mMap[i.size:i.size+offWidth], relOffset)
	enc.PutUint32(i.mMap[i.size+offWidth:i.size+entWidth], pos)
	i.size += entWidth
	return nil
}

// Lookup finds the file position to start a sequential scan from in
// order to reach relOffset, by returning the nearest indexed entry at or
// before relOffset (the index may be sparse). ok is false if the index
// is empty.
func (i *index) Lookup(relOffset uint32) (pos uint32, ok bool) {
	count := i.size / entWidth
	if count == 0 {
		return 0, false
	}
	// Entries are strictly increasing in relOffset; binary search for
	// the last entry whose relOffset <= target.
	lo, hi := uint64(0), count-1
	var best int64 = -1
	for lo <= hi {
		mid := (lo + hi) / 2
		at := mid * entWidth
		o := enc.Uint32(i.mMap[at : at+offWidth])
		if o <= relOffset {
			best = int64(mid)
			lo = mid + 1
		} else {
			if mid == 0 {
				break
			}
			hi = mid - 1
		}
	}
	if best < 0 {
		return 0, false
	}
	at := uint64(best) * entWidth
	return enc.Uint32(i.mMap[at+offWidth : at+entWidth]), true
}

func (i *index) IsEmpty() bool {
	return i.size == 0
}

func (i *index) Size() uint64 {
	return i.size
}

// Close flushes the mmap, truncates the backing file down to the bytes
// actually used, and closes the file handle.
func (i *index) Close() error {
	if err := i.mMap.Sync(gommap.MS_SYNC); err != nil {
		return err
	}
	if err := i.file.Sync(); err != nil {
		return err
	}
	if err := i.file.Truncate(int64(i.size)); err != nil {
		return err
	}
	return i.file.Close()
}

func (i *index) Name() string {
	return i.file.Name()
}
