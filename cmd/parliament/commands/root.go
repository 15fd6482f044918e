package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dyluth/parliament/internal/config"
	"github.com/dyluth/parliament/internal/printer"
	"github.com/dyluth/parliament/pkg/parliament"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	redisURL string
	group    string

	out = printer.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parliament",
	Short: "Parliament - replicated archives over Redis",
	Long: `Parliament keeps in-memory copies of application objects (archives)
synchronized across processes through Redis.

Senators see every change on an ordered multicast log. Observers (the mass)
declare the archives they care about and receive updates on a private queue.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog reads its flags from the standard flag set
		return flag.CommandLine.Parse(nil)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	defaultURL := os.Getenv("REDIS_URL")
	if defaultURL == "" {
		defaultURL = config.DefaultRedisURL
	}

	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", defaultURL, "Redis URL (defaults to $REDIS_URL)")
	rootCmd.PersistentFlags().StringVarP(&group, "group", "g", config.DefaultGroup, "Parliament group")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// openBackend connects to Redis and verifies it is reachable.
func openBackend(ctx context.Context, url, group string) (*parliament.Backend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, out.Error(
			"invalid Redis URL",
			fmt.Sprintf("Could not parse %q: %v", url, err),
			"Use the form redis://host:port/db",
		)
	}

	backend, err := parliament.NewBackend(opts, group)
	if err != nil {
		return nil, err
	}

	if err := backend.Ping(ctx); err != nil {
		backend.Close()
		return nil, out.ErrorWithContext(
			"Redis not accessible",
			err.Error(),
			map[string]string{"URL": url, "Group": group},
			"Check that Redis is running and --redis-url is correct",
		)
	}
	return backend, nil
}
