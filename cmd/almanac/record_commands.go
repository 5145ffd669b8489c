package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basalt-run/almanac/pkg/record"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the value stored at path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		value, ok, err := a.facade.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		if !ok {
			return fmt.Errorf("get: %s not found", args[0])
		}
		fmt.Println(formatValue(value))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <path> <json>",
	Short: "Save a JSON-encoded value at path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.facade.SaveFromJSON(ctx, args[0], []byte(args[1])); err != nil {
			return fmt.Errorf("set: %w", err)
		}
		fmt.Printf("Set %s\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Remove the value stored at path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.facade.DeletePath(ctx, args[0]); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list <prefix>",
	Short: "List every path under prefix and its value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(dataPath(cmd))
		if err != nil {
			return err
		}
		defer a.Close()

		count := 0
		for pv, err := range a.facade.List(ctx, args[0]) {
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			fmt.Printf("%s  %s\n", pv.Path, formatValue(pv.Value))
			count++
		}
		if count == 0 {
			fmt.Println("(no records)")
		}
		return nil
	},
}

func formatValue(v record.Value) string {
	switch val := v.(type) {
	case record.NameValue:
		return string(val)
	case record.PhotoValue:
		if val.Attribution == "" {
			return val.URL
		}
		return fmt.Sprintf("%s (%s)", val.URL, val.Attribution)
	case record.ContactValue:
		return string(val)
	case record.SupervisorValue:
		return string(val)
	case record.TenureValue:
		if val.EndDate == nil {
			return "ongoing"
		}
		return val.EndDate.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", val)
	}
}
