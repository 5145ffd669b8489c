// Package syncproto implements the peer-to-peer sync protocol: a libp2p
// stream handler serving a node's committed root and node blobs, and a
// client that pulls a remote's committed state into the local working
// tree. Grounded on original_source's src/repo/sync/{client,server}.rs,
// with libp2p's host+protocol-ID+mDNS model standing in for the
// original's iroh endpoint+ALPN+mDNS model. See SPEC_FULL.md §4.6.
package syncproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/mst"
)

// ProtocolID is the libp2p protocol string every sync stream negotiates,
// the Go analog of the original's raw ALPN byte string.
const ProtocolID = "/almanac/sync/1.0.0"

// Response size caps, enforced with io.LimitReader when the client reads a
// response. The server reads requests through maxNodeResponseBytes and
// writes responses without a cap.
const (
	maxRootResponseBytes = 1024
	maxNodeResponseBytes = 10 * 1024 * 1024
)

// requestTag and responseTag distinguish wire message shapes. The tag is
// the first byte of every request/response frame.
type requestTag byte

const (
	reqGetRoot requestTag = iota
	reqGetNode
)

type responseTag byte

const (
	respRoot responseTag = iota
	respNode
	respError
)

// Request is one client->server sync message.
type Request struct {
	Op   requestTag
	Hash mst.Hash // meaningful only for reqGetNode
}

// GetRootRequest asks the server for its current committed root hash.
func GetRootRequest() Request { return Request{Op: reqGetRoot} }

// GetNodeRequest asks the server for the raw compressed frame stored
// under hash.
func GetNodeRequest(hash mst.Hash) Request { return Request{Op: reqGetNode, Hash: hash} }

// EncodeRequest renders req to its wire form.
func EncodeRequest(req Request) []byte {
	switch req.Op {
	case reqGetRoot:
		return []byte{byte(reqGetRoot)}
	case reqGetNode:
		buf := make([]byte, 0, 1+mst.HashSize)
		buf = append(buf, byte(reqGetNode))
		buf = append(buf, req.Hash[:]...)
		return buf
	default:
		return []byte{byte(reqGetRoot)}
	}
}

// DecodeRequest parses a wire-form request.
func DecodeRequest(raw []byte) (Request, error) {
	if len(raw) == 0 {
		return Request{}, fmt.Errorf("%w: empty request frame", errs.ErrSync)
	}
	switch requestTag(raw[0]) {
	case reqGetRoot:
		return GetRootRequest(), nil
	case reqGetNode:
		if len(raw) != 1+mst.HashSize {
			return Request{}, fmt.Errorf("%w: malformed get-node request", errs.ErrSync)
		}
		hash, err := mst.HashFromBytes(raw[1:])
		if err != nil {
			return Request{}, fmt.Errorf("%w: %v", errs.ErrSync, err)
		}
		return GetNodeRequest(hash), nil
	default:
		return Request{}, fmt.Errorf("%w: unknown request tag %d", errs.ErrSync, raw[0])
	}
}

// Response is one server->client sync message. Exactly one of Root,
// NodeData, or Err is meaningful, selected by Op.
type Response struct {
	Op       responseTag
	Root     *mst.Hash
	NodeData []byte
	Err      string
}

// RootResponse answers a GetRoot request. root is nil for an uninitialized
// remote (never actually reachable once Init has run, but kept for
// protocol symmetry with the original's Option<Hash>).
func RootResponse(root *mst.Hash) Response { return Response{Op: respRoot, Root: root} }

// NodeResponse answers a GetNode request. data is nil if the server does
// not have the requested hash.
func NodeResponse(data []byte) Response { return Response{Op: respNode, NodeData: data} }

// ErrorResponse answers any request the server could not satisfy.
func ErrorResponse(msg string) Response { return Response{Op: respError, Err: msg} }

// EncodeResponse renders resp to its wire form.
func EncodeResponse(resp Response) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(resp.Op))
	switch resp.Op {
	case respRoot:
		writeOptionalHash(&buf, resp.Root)
	case respNode:
		writeOptionalBytes(&buf, resp.NodeData)
	case respError:
		writeString(&buf, resp.Err)
	}
	return buf.Bytes()
}

// DecodeResponse parses a wire-form response.
func DecodeResponse(raw []byte) (Response, error) {
	r := bytes.NewReader(raw)
	tagByte, err := r.ReadByte()
	if err != nil {
		return Response{}, fmt.Errorf("%w: empty response frame", errs.ErrSync)
	}

	switch responseTag(tagByte) {
	case respRoot:
		root, err := readOptionalHash(r)
		if err != nil {
			return Response{}, err
		}
		return RootResponse(root), nil
	case respNode:
		data, err := readOptionalBytes(r)
		if err != nil {
			return Response{}, err
		}
		return NodeResponse(data), nil
	case respError:
		msg, err := readString(r)
		if err != nil {
			return Response{}, err
		}
		return ErrorResponse(msg), nil
	default:
		return Response{}, fmt.Errorf("%w: unknown response tag %d", errs.ErrSync, tagByte)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	buf.Write(lenBuf[:n])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", fmt.Errorf("%w: read string length: %v", errs.ErrSync, err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: read string body: %v", errs.ErrSync, err)
	}
	return string(b), nil
}

func writeOptionalHash(buf *bytes.Buffer, h *mst.Hash) {
	if h == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(h[:])
}

func readOptionalHash(r *bytes.Reader) (*mst.Hash, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: read optional-hash flag: %v", errs.ErrSync, err)
	}
	if present == 0 {
		return nil, nil
	}
	b := make([]byte, mst.HashSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: read hash body: %v", errs.ErrSync, err)
	}
	h, err := mst.HashFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSync, err)
	}
	return &h, nil
}

func writeOptionalBytes(buf *bytes.Buffer, b []byte) {
	if b == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf.Write(lenBuf[:n])
	buf.Write(b)
}

func readOptionalBytes(r *bytes.Reader) ([]byte, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: read optional-bytes flag: %v", errs.ErrSync, err)
	}
	if present == 0 {
		return nil, nil
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read bytes length: %v", errs.ErrSync, err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: read bytes body: %v", errs.ErrSync, err)
	}
	return b, nil
}
