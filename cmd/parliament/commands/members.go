package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/parliament/internal/roster"
	"github.com/spf13/cobra"
)

var membersOutput string

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the observers registered in a group",
	Long: `List the durable observer membership of a group and the archive keys
each observer subscribes to.

Output Formats:
  table - Human-readable table (default)
  json  - Line-delimited JSON

Examples:
  parliament members --group gpu-east
  parliament members -o json | jq .name`,
	Args: cobra.NoArgs,
	RunE: runMembers,
}

func init() {
	membersCmd.Flags().StringVarP(&membersOutput, "output", "o", "table", "Output format (table or json)")
	rootCmd.AddCommand(membersCmd)
}

func runMembers(cmd *cobra.Command, args []string) error {
	if membersOutput != "table" && membersOutput != "json" {
		return out.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", membersOutput),
			"Valid formats: table, json",
		)
	}

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
	list := roster.Members(members)

	if membersOutput == "json" {
		return roster.FormatJSONL(cmd.OutOrStdout(), list)
	}
	roster.FormatMembers(cmd.OutOrStdout(), list, group)
	return nil
}
