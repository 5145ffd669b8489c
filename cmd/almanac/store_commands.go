package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a fresh data file with an empty working and committed tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Init(ctx); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		if _, err := syncIdentity(ctx, a.backend); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		fmt.Println("Initialized empty almanac store")
		return nil
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Promote the working tree to committed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.facade.Commit(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		hash, err := a.facade.Committed(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Committed %s\n", hash)
		return nil
	},
}

var abandonCmd = &cobra.Command{
	Use:   "abandon",
	Short: "Reset the working tree back to committed, discarding uncommitted changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.facade.Abandon(ctx); err != nil {
			return fmt.Errorf("abandon: %w", err)
		}
		hash, err := a.facade.Working(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Working reset to %s\n", hash)
		return nil
	},
}

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete nodes unreachable from the working or committed root",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.facade.GC(ctx)
		if err != nil {
			return fmt.Errorf("gc: %w", err)
		}
		fmt.Printf("Deleted %d unreachable node(s)\n", deleted)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print key count, value size, and node size breakdowns",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.facade.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}

		fmt.Printf("Working:       %s\n", stats.WorkingHash)
		fmt.Printf("Committed:     %s\n", stats.CommittedHash)
		fmt.Printf("Keys:          %d\n", stats.KeyCount)
		fmt.Printf("Value bytes:   %d\n", stats.TotalValueSize)
		fmt.Println("Value size buckets:")
		for bucket, count := range stats.ValueSizeBucket {
			fmt.Printf("  %-10s %d\n", bucket, count)
		}
		fmt.Printf("Nodes:         %d\n", stats.NodeCount)
		fmt.Println("Node size buckets:")
		for bucket, count := range stats.NodeSizeBucket {
			fmt.Printf("  %-10s %d\n", bucket, count)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print working/committed roots, local peer ID, and record counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		working, err := a.facade.Working(ctx)
		if err != nil {
			return fmt.Errorf("info: %w", err)
		}
		committed, err := a.facade.Committed(ctx)
		if err != nil {
			return err
		}

		priv, err := syncIdentity(ctx, a.backend)
		if err != nil {
			return err
		}
		peerID, err := peerIDFromKey(priv)
		if err != nil {
			return err
		}

		var keyCount int
		for _, err := range a.facade.List(ctx, "") {
			if err != nil {
				return err
			}
			keyCount++
		}

		fmt.Printf("Working:   %s\n", working)
		fmt.Printf("Committed: %s\n", committed)
		fmt.Printf("Peer ID:   %s\n", peerID)
		fmt.Printf("Records:   %d\n", keyCount)
		return nil
	},
}
