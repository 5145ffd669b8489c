package syncproto

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	"github.com/basalt-run/almanac/pkg/backend"
	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/events"
	"github.com/basalt-run/almanac/pkg/log"
	"github.com/basalt-run/almanac/pkg/metrics"
	"github.com/basalt-run/almanac/pkg/mst"
	"github.com/basalt-run/almanac/pkg/store"
)

// mdnsServiceTag namespaces almanac's mDNS announcements from other
// libp2p applications discoverable on the same LAN segment.
const mdnsServiceTag = "almanac-sync"

// Server accepts sync streams and serves the local committed root and
// node blobs. It never touches working — only committed is ever exposed
// to peers, so an in-progress local edit is never leaked mid-stream.
type Server struct {
	host  host.Host
	store *store.Store
	mdns  mdns.Service
}

// NewServer creates a libp2p host bound to listenAddrs with a deterministic
// identity derived from be's sync secret, registers the sync protocol
// handler against s, and starts mDNS discovery.
func NewServer(ctx context.Context, s *store.Store, be *backend.Backend, broker *events.Broker, listenAddrs ...string) (*Server, error) {
	priv, err := Identity(ctx, be)
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{libp2p.Identity(priv)}
	if len(listenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(listenAddrs...))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create libp2p host: %v", errs.ErrSync, err)
	}

	srv := &Server{host: h, store: s}
	h.SetStreamHandler(ProtocolID, srv.handleStream)

	notifee := &mdnsNotifee{host: h, broker: broker}
	svc := mdns.NewMdnsService(h, mdnsServiceTag, notifee)
	if err := svc.Start(); err != nil {
		h.Close()
		return nil, fmt.Errorf("%w: start mdns: %v", errs.ErrSync, err)
	}
	srv.mdns = svc

	metrics.RegisterComponent("sync", true, "serving")

	return srv, nil
}

// PeerID returns the server's stable libp2p peer ID.
func (s *Server) PeerID() peer.ID { return s.host.ID() }

// Close shuts down mDNS discovery and the libp2p host.
func (s *Server) Close() error {
	metrics.UpdateComponent("sync", false, "stopped")
	if s.mdns != nil {
		s.mdns.Close()
	}
	return s.host.Close()
}

func (s *Server) handleStream(stream network.Stream) {
	defer stream.Close()

	timer := metrics.NewTimer()
	ctx := context.Background()

	raw, err := io.ReadAll(io.LimitReader(stream, maxNodeResponseBytes))
	if err != nil {
		log.Errorf("sync server: read request: %v", err)
		return
	}

	req, err := DecodeRequest(raw)
	if err != nil {
		s.writeResponse(stream, ErrorResponse(err.Error()))
		metrics.SyncServerRequestsTotal.WithLabelValues("unknown", "error").Inc()
		return
	}

	var resp Response
	var op string
	switch req.Op {
	case reqGetRoot:
		op = "get_root"
		resp = s.handleGetRoot(ctx)
	case reqGetNode:
		op = "get_node"
		resp = s.handleGetNode(ctx, req.Hash)
	default:
		op = "unknown"
		resp = ErrorResponse("unsupported request")
	}

	status := "ok"
	if resp.Op == respError {
		status = "error"
	}
	metrics.SyncServerRequestsTotal.WithLabelValues(op, status).Inc()
	timer.ObserveDurationVec(metrics.SyncServerRequestDuration, op)

	s.writeResponse(stream, resp)
}

func (s *Server) handleGetRoot(ctx context.Context) Response {
	root, err := s.store.Committed(ctx)
	if errors.Is(err, errs.ErrRefNotFound) {
		return RootResponse(nil)
	}
	if err != nil {
		return ErrorResponse(err.Error())
	}
	return RootResponse(&root)
}

func (s *Server) handleGetNode(ctx context.Context, hash mst.Hash) Response {
	data, err := s.store.ReadNodeBytes(ctx, hash)
	if err != nil {
		if errors.Is(err, errs.ErrNodeNotFound) {
			return NodeResponse(nil)
		}
		return ErrorResponse(err.Error())
	}
	return NodeResponse(data)
}

func (s *Server) writeResponse(stream network.Stream, resp Response) {
	raw := EncodeResponse(resp)
	if _, err := stream.Write(raw); err != nil {
		log.Errorf("sync server: write response: %v", err)
	}
}

type mdnsNotifee struct {
	host   host.Host
	broker *events.Broker
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.host.ID() {
		return
	}
	n.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.PermanentAddrTTL)
	metrics.SyncPeersTotal.Inc()
	if n.broker != nil {
		n.broker.Publish(&events.Event{
			Type:    events.EventPeerDiscovered,
			Message: pi.ID.String(),
		})
	}
}
