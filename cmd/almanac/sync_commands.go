package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"

	"github.com/basalt-run/almanac/pkg/backend"
	"github.com/basalt-run/almanac/pkg/store"
	"github.com/basalt-run/almanac/pkg/syncproto"
)

func syncIdentity(ctx context.Context, be *backend.Backend) (libp2pcrypto.PrivKey, error) {
	return syncproto.Identity(ctx, be)
}

func peerIDFromKey(priv libp2pcrypto.PrivKey) (peer.ID, error) {
	return peer.IDFromPrivateKey(priv)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bind the sync endpoint, enable LAN discovery, and serve committed state to peers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		listenAddr, _ := cmd.Flags().GetString("listen")

		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		pooled, err := backend.Pooled(dataPath(cmd))
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		defer pooled.Close()

		served := store.Open(pooled, store.WithBroker(a.broker))
		server, err := syncproto.NewServer(ctx, served, pooled, a.broker, listenAddr)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		defer server.Close()

		fmt.Printf("Serving sync protocol as %s\n", server.PeerID())
		if metricsAddr != "" {
			fmt.Printf("Metrics: http://%s/metrics\n", metricsAddr)
		}
		fmt.Println("Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("Shutting down...")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "/ip4/0.0.0.0/tcp/0", "libp2p listen multiaddr")
	pullCmd.Flags().Duration("discover-timeout", 10*time.Second, "How long to wait for the peer to appear via mDNS")
}

var pullCmd = &cobra.Command{
	Use:   "pull <peer-id>",
	Short: "Pull a peer's committed state into the local working tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		timeout, _ := cmd.Flags().GetDuration("discover-timeout")

		peerID, err := peer.Decode(args[0])
		if err != nil {
			return fmt.Errorf("pull: invalid peer id %q: %w", args[0], err)
		}

		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := syncproto.NewClient(ctx, a.store, a.backend)
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		defer client.Close()

		fmt.Printf("Looking for %s on the LAN...\n", peerID)
		if err := client.DiscoverPeer(ctx, peerID, timeout); err != nil {
			return fmt.Errorf("pull: %w", err)
		}

		oldWorking, newWorking, err := client.Pull(ctx, peerID)
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		if oldWorking == newWorking {
			fmt.Println("Already up to date")
			return nil
		}

		if err := a.facade.ReplayPullDiff(ctx, oldWorking, newWorking); err != nil {
			return fmt.Errorf("pull: replay index: %w", err)
		}

		fmt.Printf("Pulled %s -> %s\n", oldWorking, newWorking)
		return nil
	},
}
