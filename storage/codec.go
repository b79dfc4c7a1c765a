package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"github.com/golang/snappy"

	"leafdb/storage/index"
)

// Value encoding: 1-byte type tag followed by type-specific data.
//
//	tagNull      (0): no data
//	tagInteger   (1): 8 bytes int64 big-endian
//	tagText      (2): uint32 length + bytes
//	tagBoolean   (3): 1 byte (0=false, 1=true)
//	tagTimestamp (4): 8 bytes unix seconds + 4 bytes nanoseconds
//	tagFloat     (5): 8 bytes IEEE 754 bits
//	tagIndexKey  (6): field value + primary key, each a tagged value
//	tagKeyBound  (7): 1 byte int8
const (
	tagNull      byte = 0
	tagInteger   byte = 1
	tagText      byte = 2
	tagBoolean   byte = 3
	tagTimestamp byte = 4
	tagFloat     byte = 5
	tagIndexKey  byte = 6
	tagKeyBound  byte = 7
)

// encodeValue appends the binary encoding of v to buf.
func encodeValue(buf []byte, v any) []byte {
	switch val := v.(type) {
	case nil:
		return append(buf, tagNull)
	case int64:
		buf = append(buf, tagInteger)
		return binary.BigEndian.AppendUint64(buf, uint64(val))
	case string:
		buf = append(buf, tagText)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val)))
		return append(buf, val...)
	case bool:
		buf = append(buf, tagBoolean)
		if val {
			return append(buf, 1)
		}
		return append(buf, 0)
	case time.Time:
		buf = append(buf, tagTimestamp)
		buf = binary.BigEndian.AppendUint64(buf, uint64(val.Unix()))
		return binary.BigEndian.AppendUint32(buf, uint32(val.Nanosecond()))
	case float64:
		buf = append(buf, tagFloat)
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(val))
	case indexKey:
		buf = append(buf, tagIndexKey)
		buf = encodeValue(buf, val.Value)
		return encodeValue(buf, val.PK)
	case keyBound:
		return append(buf, tagKeyBound, byte(val))
	default:
		panic(fmt.Sprintf("storage: cannot encode %T", v))
	}
}

// decodeValue reads one value from data, returning the value and the
// remaining bytes.
func decodeValue(data []byte) (any, []byte, error) {
	if len(data) == 0 {
		return nil, nil, errors.New("empty value data")
	}
	tag := data[0]
	data = data[1:]

	switch tag {
	case tagNull:
		return nil, data, nil
	case tagInteger:
		if len(data) < 8 {
			return nil, nil, errors.New("truncated integer value")
		}
		return int64(binary.BigEndian.Uint64(data)), data[8:], nil
	case tagText:
		n, data, err := decodeCount(data)
		if err != nil {
			return nil, nil, err
		}
		if uint64(len(data)) < uint64(n) {
			return nil, nil, errors.New("truncated text value")
		}
		return string(data[:n]), data[n:], nil
	case tagBoolean:
		if len(data) < 1 {
			return nil, nil, errors.New("truncated boolean value")
		}
		return data[0] != 0, data[1:], nil
	case tagTimestamp:
		if len(data) < 12 {
			return nil, nil, errors.New("truncated timestamp value")
		}
		sec := int64(binary.BigEndian.Uint64(data))
		nsec := int64(binary.BigEndian.Uint32(data[8:]))
		return time.Unix(sec, nsec).UTC(), data[12:], nil
	case tagFloat:
		if len(data) < 8 {
			return nil, nil, errors.New("truncated float value")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), data[8:], nil
	case tagIndexKey:
		v, data, err := decodeValue(data)
		if err != nil {
			return nil, nil, fmt.Errorf("index key value: %w", err)
		}
		pk, data, err := decodeValue(data)
		if err != nil {
			return nil, nil, fmt.Errorf("index key locator: %w", err)
		}
		return indexKey{Value: v, PK: pk}, data, nil
	case tagKeyBound:
		if len(data) < 1 {
			return nil, nil, errors.New("truncated key bound")
		}
		return keyBound(int8(data[0])), data[1:], nil
	default:
		return nil, nil, fmt.Errorf("unknown value tag %d", tag)
	}
}

func decodeCount(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, errors.New("truncated count")
	}
	return binary.BigEndian.Uint32(data), data[4:], nil
}

// Snapshot file layout:
//
//	[4-byte magic "LIDX"][uint16 version][byte flags][body...][uint32 crc32]
//
// The CRC covers everything before it. With flagSnappy set, body is
// snappy-compressed. The uncompressed body is
//
//	[uint32 order][uint32 node count][node...]
//
// and each node is
//
//	[byte kind][uint32 key count][key...]
//	leaf:     per key [byte present] and, if present, [uint32 n][value...]
//	internal: [uint32 child count][uint32 child position...]
const (
	snapshotMagic   = "LIDX"
	snapshotVersion = 1
	headerSize      = 7 // 4 (magic) + 2 (version) + 1 (flags)

	flagSnappy byte = 1 << 0

	kindLeaf     byte = 0
	kindInternal byte = 1
)

// ErrCorruptSnapshot is returned when a stored index snapshot cannot be
// decoded.
var ErrCorruptSnapshot = errors.New("corrupt index snapshot")

// encodeSnapshot serializes s, compressing the body if compress is set.
func encodeSnapshot(s index.Snapshot, compress bool) []byte {
	body := binary.BigEndian.AppendUint32(nil, uint32(s.Order))
	body = binary.BigEndian.AppendUint32(body, uint32(len(s.Nodes)))
	for _, n := range s.Nodes {
		body = encodeNode(body, n)
	}

	var flags byte
	if compress {
		flags |= flagSnappy
		body = snappy.Encode(nil, body)
	}

	out := make([]byte, 0, headerSize+len(body)+4)
	out = append(out, snapshotMagic...)
	out = binary.BigEndian.AppendUint16(out, snapshotVersion)
	out = append(out, flags)
	out = append(out, body...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
}

func encodeNode(buf []byte, n index.NodeSnapshot) []byte {
	if n.Leaf {
		buf = append(buf, kindLeaf)
	} else {
		buf = append(buf, kindInternal)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(n.Keys)))
	for _, k := range n.Keys {
		buf = encodeValue(buf, k)
	}

	if !n.Leaf {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(n.Children)))
		for _, c := range n.Children {
			buf = binary.BigEndian.AppendUint32(buf, uint32(c))
		}
		return buf
	}
	for _, b := range n.Buckets {
		if b.IsTombstone() {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
		for _, v := range b {
			buf = encodeValue(buf, v)
		}
	}
	return buf
}

// decodeSnapshot parses a snapshot written by encodeSnapshot. Every
// failure wraps ErrCorruptSnapshot.
func decodeSnapshot(data []byte) (index.Snapshot, error) {
	s, err := decodeSnapshotData(data)
	if err != nil {
		return index.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return s, nil
}

func decodeSnapshotData(data []byte) (index.Snapshot, error) {
	if len(data) < headerSize+4 {
		return index.Snapshot{}, fmt.Errorf("%d bytes is too short", len(data))
	}
	if string(data[:4]) != snapshotMagic {
		return index.Snapshot{}, fmt.Errorf("bad magic %q", data[:4])
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != snapshotVersion {
		return index.Snapshot{}, fmt.Errorf("unsupported version %d", v)
	}
	flags := data[6]

	crcAt := len(data) - 4
	if crc32.ChecksumIEEE(data[:crcAt]) != binary.BigEndian.Uint32(data[crcAt:]) {
		return index.Snapshot{}, errors.New("checksum mismatch")
	}

	body := data[headerSize:crcAt]
	if flags&flagSnappy != 0 {
		var err error
		if body, err = snappy.Decode(nil, body); err != nil {
			return index.Snapshot{}, fmt.Errorf("decompress: %w", err)
		}
	}

	if len(body) < 8 {
		return index.Snapshot{}, errors.New("truncated body")
	}
	s := index.Snapshot{Order: int(binary.BigEndian.Uint32(body))}
	count := binary.BigEndian.Uint32(body[4:])
	body = body[8:]

	for i := uint32(0); i < count; i++ {
		var n index.NodeSnapshot
		var err error
		if n, body, err = decodeNode(body); err != nil {
			return index.Snapshot{}, fmt.Errorf("node %d: %w", i, err)
		}
		s.Nodes = append(s.Nodes, n)
	}
	if len(body) != 0 {
		return index.Snapshot{}, fmt.Errorf("%d trailing bytes", len(body))
	}
	return s, nil
}

func decodeNode(data []byte) (index.NodeSnapshot, []byte, error) {
	var n index.NodeSnapshot
	if len(data) < 1 {
		return n, nil, errors.New("truncated node kind")
	}
	switch data[0] {
	case kindLeaf:
		n.Leaf = true
	case kindInternal:
	default:
		return n, nil, fmt.Errorf("unknown node kind %d", data[0])
	}

	nkeys, data, err := decodeCount(data[1:])
	if err != nil {
		return n, nil, err
	}
	for i := uint32(0); i < nkeys; i++ {
		var k any
		if k, data, err = decodeValue(data); err != nil {
			return n, nil, fmt.Errorf("key %d: %w", i, err)
		}
		n.Keys = append(n.Keys, k)
	}

	if !n.Leaf {
		nchildren, rest, err := decodeCount(data)
		if err != nil {
			return n, nil, err
		}
		data = rest
		if uint64(len(data)) < 4*uint64(nchildren) {
			return n, nil, errors.New("truncated child list")
		}
		n.Children = make([]int, nchildren)
		for i := range n.Children {
			n.Children[i] = int(binary.BigEndian.Uint32(data))
			data = data[4:]
		}
		return n, data, nil
	}

	n.Buckets = make([]index.Bucket, nkeys)
	for i := range n.Buckets {
		if len(data) < 1 {
			return n, nil, errors.New("truncated bucket")
		}
		present := data[0] != 0
		data = data[1:]
		if !present {
			continue
		}
		size, rest, err := decodeCount(data)
		if err != nil {
			return n, nil, err
		}
		data = rest
		b := make(index.Bucket, 0, min(size, 64))
		for j := uint32(0); j < size; j++ {
			var v any
			if v, data, err = decodeValue(data); err != nil {
				return n, nil, fmt.Errorf("bucket %d value %d: %w", i, j, err)
			}
			b = append(b, v)
		}
		n.Buckets[i] = b
	}
	return n, data, nil
}
