package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/connector-poller/pkg/watermark"
)

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Inspect or change stored watermarks",
}

var watermarkGetCmd = &cobra.Command{
	Use:   "get <connector> [instance]",
	Short: "Print the stored watermark",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(a *app) error {
			key := a.Key(args[0], instanceArg(args))
			ts, err := a.store.Get(cmd.Context(), key)
			if errors.Is(err, watermark.ErrNotFound) {
				cmd.Printf("%s: not set\n", key)
				return nil
			}
			if err != nil {
				return err
			}
			cmd.Printf("%s: %s (%d)\n", key, ts.UTC().Format(time.RFC3339Nano), ts.UnixMilli())
			return nil
		})
	},
}

var watermarkSetCmd = &cobra.Command{
	Use:   "set <connector> <instance> <time>",
	Short: "Store a watermark (RFC 3339 or Unix milliseconds)",
	Long: `Stores a watermark so that the next pass only emits items created after
it. The time is either RFC 3339 (2024-05-01T00:00:00Z) or Unix milliseconds.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := parseTime(args[2])
		if err != nil {
			return err
		}
		return withStore(cmd, func(a *app) error {
			key := a.Key(args[0], args[1])
			if err := a.store.Set(cmd.Context(), key, ts); err != nil {
				return err
			}
			cmd.Printf("%s: set to %s\n", key, ts.UTC().Format(time.RFC3339Nano))
			return nil
		})
	},
}

var watermarkResetCmd = &cobra.Command{
	Use:   "reset <connector> [instance]",
	Short: "Delete a watermark; the next pass is treated as a first run",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(a *app) error {
			d, ok := a.store.(watermark.Deleter)
			if !ok {
				return fmt.Errorf("store backend %s cannot delete watermarks", cfg.Store.Backend)
			}
			key := a.Key(args[0], instanceArg(args))
			if err := d.Delete(cmd.Context(), key); err != nil {
				return err
			}
			cmd.Printf("%s: reset\n", key)
			return nil
		})
	},
}

func init() {
	watermarkCmd.AddCommand(watermarkGetCmd, watermarkSetCmd, watermarkResetCmd)
	rootCmd.AddCommand(watermarkCmd)
}

func instanceArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return "default"
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or Unix milliseconds", s)
	}
	return ts, nil
}

func withStore(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
