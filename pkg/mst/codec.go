package mst

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/basalt-run/almanac/pkg/errs"
)

// encode produces the canonical binary encoding of a Node: an optional
// 32-byte left hash, a varint item count, then each item as (varint key
// length, key bytes, varint value length, value bytes, optional 32-byte
// right hash). Equal Node values always produce equal bytes.
func encode(n *Node) []byte {
	buf := make([]byte, 0, 64+32*len(n.Items))

	buf = append(buf, boolByte(n.Left != nil))
	if n.Left != nil {
		buf = append(buf, n.Left[:]...)
	}

	buf = binary.AppendUvarint(buf, uint64(len(n.Items)))
	for _, it := range n.Items {
		buf = binary.AppendUvarint(buf, uint64(len(it.Key)))
		buf = append(buf, it.Key...)
		buf = binary.AppendUvarint(buf, uint64(len(it.Value)))
		buf = append(buf, it.Value...)
		buf = append(buf, boolByte(it.Right != nil))
		if it.Right != nil {
			buf = append(buf, it.Right[:]...)
		}
	}
	return buf
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// decode is the inverse of encode. It fails with ErrCodec on any
// truncated or malformed input.
func decode(buf []byte) (*Node, error) {
	r := &byteReader{buf: buf}

	hasLeft, err := r.byte()
	if err != nil {
		return nil, codecErr(err)
	}
	n := &Node{}
	if hasLeft != 0 {
		h, err := r.hash()
		if err != nil {
			return nil, codecErr(err)
		}
		n.Left = &h
	}

	count, err := r.uvarint()
	if err != nil {
		return nil, codecErr(err)
	}
	n.Items = make([]Item, 0, count)
	for i := uint64(0); i < count; i++ {
		keyLen, err := r.uvarint()
		if err != nil {
			return nil, codecErr(err)
		}
		key, err := r.bytes(int(keyLen))
		if err != nil {
			return nil, codecErr(err)
		}
		valLen, err := r.uvarint()
		if err != nil {
			return nil, codecErr(err)
		}
		val, err := r.bytes(int(valLen))
		if err != nil {
			return nil, codecErr(err)
		}
		hasRight, err := r.byte()
		if err != nil {
			return nil, codecErr(err)
		}
		item := Item{Key: key, Value: val}
		if hasRight != 0 {
			h, err := r.hash()
			if err != nil {
				return nil, codecErr(err)
			}
			item.Right = &h
		}
		n.Items = append(n.Items, item)
	}

	if !r.exhausted() {
		return nil, fmt.Errorf("%w: trailing bytes after node", errs.ErrCodec)
	}
	return n, nil
}

func codecErr(err error) error {
	return fmt.Errorf("%w: %v", errs.ErrCodec, err)
}

type byteReader struct {
	buf []byte
	pos int
}

var errTruncated = fmt.Errorf("truncated buffer")

func (r *byteReader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, errTruncated
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *byteReader) hash() (Hash, error) {
	b, err := r.bytes(HashSize)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, errTruncated
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) exhausted() bool {
	return r.pos == len(r.buf)
}

// compress applies a fast byte-wise compressor to encoded node bytes.
// Snappy's block format embeds the original length itself, so no extra
// framing is needed here.
func compress(b []byte) []byte {
	return snappy.Encode(nil, b)
}

// decompress is the inverse of compress.
func decompress(b []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrCompression, err)
	}
	return out, nil
}

// HashBytes returns the content hash of an already-compressed frame: the
// Node's identity.
func HashBytes(compressed []byte) Hash {
	return sha256.Sum256(compressed)
}

// EncodeNode canonically encodes and compresses a Node, returning both the
// resulting frame and its content hash. This is the exact byte sequence
// stored under the Node namespace.
func EncodeNode(n *Node) ([]byte, Hash) {
	compressed := compress(encode(n))
	return compressed, HashBytes(compressed)
}

// DecodeNode decompresses and decodes a frame previously produced by
// EncodeNode, returning the Node it held.
func DecodeNode(compressed []byte) (*Node, error) {
	raw, err := decompress(compressed)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}
