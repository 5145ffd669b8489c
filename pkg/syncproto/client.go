package syncproto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	"github.com/basalt-run/almanac/pkg/backend"
	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/metrics"
	"github.com/basalt-run/almanac/pkg/mst"
	"github.com/basalt-run/almanac/pkg/store"
)

// Client pulls a remote peer's committed root and every node it
// reaches into the local store's working tree. Grounded on
// original_source's RepoClient::pull.
type Client struct {
	host  host.Host
	store *store.Store
}

// NewClient creates a libp2p host with the same deterministic identity
// NewServer would derive from be, so a node's client and server share one
// peer ID.
func NewClient(ctx context.Context, s *store.Store, be *backend.Backend) (*Client, error) {
	priv, err := Identity(ctx, be)
	if err != nil {
		return nil, err
	}
	h, err := libp2p.New(libp2p.Identity(priv))
	if err != nil {
		return nil, fmt.Errorf("%w: create libp2p host: %v", errs.ErrSync, err)
	}
	return &Client{host: h, store: s}, nil
}

// Close shuts down the client's libp2p host.
func (c *Client) Close() error {
	return c.host.Close()
}

// Connect adds addrInfo to the host's peerstore so Pull can dial it.
func (c *Client) Connect(ctx context.Context, addrInfo peer.AddrInfo) error {
	if err := c.host.Connect(ctx, addrInfo); err != nil {
		return fmt.Errorf("%w: connect to %s: %v", errs.ErrSync, addrInfo.ID, err)
	}
	return nil
}

// DiscoverPeer runs mDNS discovery until peerID is found on the LAN or
// timeout elapses, adding its addresses to the local peerstore. Lets the
// CLI's pull command take a bare peer ID, the way a user copies it off
// another node's `almanac info` output, without needing a multiaddr.
func (c *Client) DiscoverPeer(ctx context.Context, peerID peer.ID, timeout time.Duration) error {
	found := make(chan struct{}, 1)
	notifee := &targetNotifee{host: c.host, target: peerID, found: found}

	svc := mdns.NewMdnsService(c.host, mdnsServiceTag, notifee)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("%w: start mdns discovery: %v", errs.ErrSync, err)
	}
	defer svc.Close()

	if len(c.host.Peerstore().Addrs(peerID)) > 0 {
		return nil
	}

	select {
	case <-found:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: peer %s not found on LAN within %s", errs.ErrSync, peerID, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

type targetNotifee struct {
	host   host.Host
	target peer.ID
	found  chan struct{}
}

func (n *targetNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID != n.target {
		return
	}
	n.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, time.Hour)
	select {
	case n.found <- struct{}{}:
	default:
	}
}

// Pull fetches peerID's committed root and every node reachable from it
// not already present locally, then advances the local working ref to
// that root. It refuses with ErrUncommittedChanges if working and
// committed have diverged locally — exactly as the original's pull does,
// so a pull never discards an in-progress local edit. Returns the
// working root as it stood before and after the pull, so a caller
// holding a record.Facade can replay the diff into its secondary index.
func (c *Client) Pull(ctx context.Context, peerID peer.ID) (oldWorking, newWorking mst.Hash, err error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SyncPullDuration)

	working, err := c.store.Working(ctx)
	if err != nil {
		return mst.Hash{}, mst.Hash{}, err
	}
	committed, err := c.store.Committed(ctx)
	if err != nil {
		return mst.Hash{}, mst.Hash{}, err
	}
	if working != committed {
		metrics.SyncPullsTotal.WithLabelValues("uncommitted_changes").Inc()
		return mst.Hash{}, mst.Hash{}, errs.ErrUncommittedChanges
	}

	remoteRoot, err := c.getRemoteRoot(ctx, peerID)
	if err != nil {
		metrics.SyncPullsTotal.WithLabelValues("error").Inc()
		return mst.Hash{}, mst.Hash{}, err
	}
	if remoteRoot == nil {
		metrics.SyncPullsTotal.WithLabelValues("empty_remote").Inc()
		return working, working, nil
	}

	if err := c.fetchMissing(ctx, peerID, *remoteRoot); err != nil {
		metrics.SyncPullsTotal.WithLabelValues("error").Inc()
		return mst.Hash{}, mst.Hash{}, err
	}

	if err := c.store.AdvanceWorkingTo(ctx, *remoteRoot); err != nil {
		metrics.SyncPullsTotal.WithLabelValues("error").Inc()
		return mst.Hash{}, mst.Hash{}, err
	}

	metrics.SyncPullsTotal.WithLabelValues("ok").Inc()
	return working, *remoteRoot, nil
}

// fetchMissing walks every node reachable from root breadth-first,
// fetching and storing each one not already present locally.
func (c *Client) fetchMissing(ctx context.Context, peerID peer.ID, root mst.Hash) error {
	queue := []mst.Hash{root}
	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]

		have, err := c.store.HasNode(ctx, hash)
		if err != nil {
			return err
		}
		if have {
			continue
		}

		data, err := c.getRemoteNode(ctx, peerID, hash)
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("%w: remote missing node %s", errs.ErrSync, hash)
		}

		children, err := store.NodeChildren(data)
		if err != nil {
			return err
		}
		queue = append(queue, children...)

		if _, err := c.store.WriteNodeBytes(ctx, data); err != nil {
			return err
		}
		metrics.SyncNodesFetchedTotal.Inc()
	}
	return nil
}

func (c *Client) getRemoteRoot(ctx context.Context, peerID peer.ID) (*mst.Hash, error) {
	resp, err := c.roundTrip(ctx, peerID, GetRootRequest(), maxRootResponseBytes)
	if err != nil {
		return nil, err
	}
	if resp.Op == respError {
		return nil, fmt.Errorf("%w: %s", errs.ErrSync, resp.Err)
	}
	if resp.Op != respRoot {
		return nil, fmt.Errorf("%w: unexpected response to get-root", errs.ErrSync)
	}
	return resp.Root, nil
}

func (c *Client) getRemoteNode(ctx context.Context, peerID peer.ID, hash mst.Hash) ([]byte, error) {
	resp, err := c.roundTrip(ctx, peerID, GetNodeRequest(hash), maxNodeResponseBytes)
	if err != nil {
		return nil, err
	}
	if resp.Op == respError {
		return nil, fmt.Errorf("%w: %s", errs.ErrSync, resp.Err)
	}
	if resp.Op != respNode {
		return nil, fmt.Errorf("%w: unexpected response to get-node", errs.ErrSync)
	}
	return resp.NodeData, nil
}

// roundTrip opens one stream per request, independent per call — the Go
// analog of the original opening a fresh bidirectional QUIC stream for
// every request.
func (c *Client) roundTrip(ctx context.Context, peerID peer.ID, req Request, maxResp int64) (Response, error) {
	stream, err := c.host.NewStream(ctx, peerID, ProtocolID)
	if err != nil {
		return Response{}, fmt.Errorf("%w: open stream to %s: %v", errs.ErrSync, peerID, err)
	}
	defer stream.Close()

	if _, err := stream.Write(EncodeRequest(req)); err != nil {
		return Response{}, fmt.Errorf("%w: write request: %v", errs.ErrSync, err)
	}
	if err := stream.CloseWrite(); err != nil {
		return Response{}, fmt.Errorf("%w: close write side: %v", errs.ErrSync, err)
	}

	raw, err := io.ReadAll(io.LimitReader(stream, maxResp))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read response: %v", errs.ErrSync, err)
	}

	return DecodeResponse(raw)
}
