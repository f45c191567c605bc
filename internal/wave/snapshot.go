package wave

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/zeebo/xxh3"
)

// Binary snapshot of a wave: fixed-width little-endian header, the triples
// of L in chronological order with their level index, and an xxh3 checksum
// of everything before it. Good enough to rebuild a wave that answers every
// Get identically; not a storage format.

var ByteOrder = binary.LittleEndian

const (
	snapshotVersion = 1

	snapHeaderSize = 78
	snapItemSize   = 25
	snapSumSize    = 8
)

var (
	ErrSnapshotTruncated = errors.New("snapshot truncated")
	ErrSnapshotVersion   = errors.New("unsupported snapshot version")
	ErrSnapshotChecksum  = errors.New("snapshot checksum mismatch")
	ErrSnapshotCorrupt   = errors.New("snapshot corrupt")
)

// Snapshot serializes the wave.
func (w *Wave) Snapshot() []byte {
	buf := make([]byte, snapHeaderSize+snapItemSize*w.items.size+snapSumSize)

	buf[0] = snapshotVersion
	if w.expire {
		buf[1] = 1
	}
	ByteOrder.PutUint64(buf[2:10], uint64(w.n))
	ByteOrder.PutUint64(buf[10:18], math.Float64bits(w.e))
	ByteOrder.PutUint64(buf[18:26], uint64(w.r))
	ByteOrder.PutUint64(buf[26:34], uint64(w.m))
	ByteOrder.PutUint64(buf[34:42], uint64(w.start))
	ByteOrder.PutUint64(buf[42:50], uint64(w.last))
	ByteOrder.PutUint64(buf[50:58], uint64(w.pos))
	ByteOrder.PutUint64(buf[58:66], uint64(w.total))
	ByteOrder.PutUint64(buf[66:74], uint64(w.z))
	ByteOrder.PutUint32(buf[74:78], uint32(w.items.size))

	off := snapHeaderSize
	for it := w.items.head; it != nil; it = it.lnext {
		ByteOrder.PutUint64(buf[off:off+8], uint64(it.Pos))
		ByteOrder.PutUint64(buf[off+8:off+16], uint64(it.V))
		ByteOrder.PutUint64(buf[off+16:off+24], uint64(it.Z))
		buf[off+24] = byte(it.level)
		off += snapItemSize
	}

	ByteOrder.PutUint64(buf[off:off+8], xxh3.Hash(buf[:off]))
	return buf
}

// FromSnapshot rebuilds a wave from a Snapshot payload.
func FromSnapshot(buf []byte) (*Wave, error) {
	if len(buf) < snapHeaderSize+snapSumSize {
		return nil, ErrSnapshotTruncated
	}
	if buf[0] != snapshotVersion {
		return nil, ErrSnapshotVersion
	}

	count := int(ByteOrder.Uint32(buf[74:78]))
	payload := snapHeaderSize + snapItemSize*count
	if len(buf) != payload+snapSumSize {
		return nil, ErrSnapshotTruncated
	}
	if ByteOrder.Uint64(buf[payload:payload+8]) != xxh3.Hash(buf[:payload]) {
		return nil, ErrSnapshotChecksum
	}

	w := &Wave{
		expire: buf[1] == 1,
		n:      int64(ByteOrder.Uint64(buf[2:10])),
		e:      math.Float64frombits(ByteOrder.Uint64(buf[10:18])),
		r:      int64(ByteOrder.Uint64(buf[18:26])),
		m:      int64(ByteOrder.Uint64(buf[26:34])),
		start:  int64(ByteOrder.Uint64(buf[34:42])),
		last:   int64(ByteOrder.Uint64(buf[42:50])),
		pos:    int64(ByteOrder.Uint64(buf[50:58])),
		total:  int64(ByteOrder.Uint64(buf[58:66])),
		z:      int64(ByteOrder.Uint64(buf[66:74])),
	}
	w.numLevels = NumLevels(w.n, w.e, w.r)
	w.cap = LevelCap(w.e)
	w.levels = make([]levelQueue, w.numLevels)

	off := snapHeaderSize
	for i := 0; i < count; i++ {
		j := int(buf[off+24])
		if int64(j) >= w.numLevels {
			return nil, ErrSnapshotCorrupt
		}
		it := &Item{
			Pos:   int64(ByteOrder.Uint64(buf[off : off+8])),
			V:     int64(ByteOrder.Uint64(buf[off+8 : off+16])),
			Z:     int64(ByteOrder.Uint64(buf[off+16 : off+24])),
			level: j,
		}
		// Chronological replay keeps both orderings: L grows at the
		// tail, the level queue at the head.
		w.levels[j].pushHead(it)
		w.items.pushTail(it)
		off += snapItemSize
	}
	return w, nil
}
