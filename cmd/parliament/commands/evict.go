package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/parliament/pkg/parliament"
	"github.com/spf13/cobra"
)

var evictCmd = &cobra.Command{
	Use:   "evict <name>",
	Short: "Withdraw an observer that died without withdrawing",
	Long: `Evict removes an observer from the group on its behalf: senators drop
its subscriptions and its durable membership entry is deleted.

Examples:
  parliament members
  parliament evict dashboard-7f3a`,
	Args: cobra.ExactArgs(1),
	RunE: runEvict,
}

func init() {
	rootCmd.AddCommand(evictCmd)
}

func runEvict(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := context.Background()

	backend, err := openBackend(ctx, redisURL, group)
	if err != nil {
		return err
	}
	defer backend.Close()

	members, err := backend.Members(ctx)
	if err != nil {
		return out.Error("failed to read membership", err.Error())
	}
	if _, ok := members[name]; !ok {
		out.Warning("%s is not a registered observer in group '%s'; announcing anyway", name, group)
	}

	// A short-lived senator that never joins; it only publishes.
	peer, err := parliament.New(backend, parliament.Options{Role: parliament.RoleSenator}, nil, nil)
	if err != nil {
		return err
	}
	if err := peer.Evict(ctx, name); err != nil {
		return out.ErrorWithContext(
			fmt.Sprintf("failed to evict %s", name),
			err.Error(),
			map[string]string{"Group": group},
		)
	}

	out.Success("Evicted %s from group '%s'", name, group)
	return nil
}
