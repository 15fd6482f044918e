package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/parliament/internal/filter"
	"github.com/dyluth/parliament/internal/roster"
	"github.com/spf13/cobra"
)

var (
	archivesFrom   string
	archivesOutput string
	archivesClass  string
	archivesValue  string
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List the archives a running peer tracks",
	Long: `List the archive keys held by a running peer, read from its HTTP API.

Examples:
  parliament archives --from http://scheduler-1:8080
  parliament archives --from http://localhost:8080 -o json
  parliament archives --class Task --value '4*'`,
	Args: cobra.NoArgs,
	RunE: runArchives,
}

func init() {
	archivesCmd.Flags().StringVar(&archivesFrom, "from", "http://localhost:8080", "Base URL of a peer's API")
	archivesCmd.Flags().StringVarP(&archivesOutput, "output", "o", "table", "Output format (table or json)")
	archivesCmd.Flags().StringVar(&archivesClass, "class", "", "Glob pattern for the archive class")
	archivesCmd.Flags().StringVar(&archivesValue, "value", "", "Glob pattern for the key value")
	rootCmd.AddCommand(archivesCmd)
}

func runArchives(cmd *cobra.Command, args []string) error {
	if archivesOutput != "table" && archivesOutput != "json" {
		return out.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", archivesOutput),
			"Valid formats: table, json",
		)
	}

	keys, err := fetchArchives(context.Background(), archivesFrom)
	if err != nil {
		return out.Error("failed to list archives", err.Error(),
			"Check that the peer is running and --from points at its HTTP address")
	}

	criteria := filter.Criteria{ClassGlob: archivesClass, ValueGlob: archivesValue}
	keys = criteria.Keys(keys)

	if archivesOutput == "json" {
		return roster.FormatJSONL(cmd.OutOrStdout(), keys)
	}
	roster.FormatArchives(cmd.OutOrStdout(), keys, archivesFrom)
	return nil
}
