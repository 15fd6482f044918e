package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/parliament/internal/filter"
	"github.com/dyluth/parliament/internal/jobs"
	"github.com/dyluth/parliament/internal/record"
	"github.com/dyluth/parliament/internal/roster"
	"github.com/dyluth/parliament/pkg/parliament"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var (
	watchFrom    string
	watchTrigger string
	watchOutput  string
	watchOrigin  string
)

var watchCmd = &cobra.Command{
	Use:   "watch <class/attr/value>",
	Short: "Follow changes to one archive as an observer",
	Long: `Join the group as a transient observer of a single archive and print
every update it receives until interrupted.

The initial state is loaded from a running peer's HTTP API (--from) and
built with the named trigger. The observer withdraws on exit.

Output Formats:
  default - Human-readable lines with timestamps
  json    - Line-delimited JSON envelopes

Examples:
  parliament watch Task/id/42 --from http://scheduler-1:8080
  parliament watch Task/id/42 -o json > task-42.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchFrom, "from", "http://localhost:8080", "Base URL of a peer's API to load the archive from")
	watchCmd.Flags().StringVar(&watchTrigger, "trigger", jobs.TriggerTask, "Trigger used to build the archive")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchOrigin, "origin", "", "Only print envelopes published by this peer")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchOutput != "default" && watchOutput != "json" {
		return out.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutput),
			"Valid formats: default, json",
		)
	}

	key, err := parliament.ParseKey(args[0])
	if err != nil {
		return out.Error("invalid archive key", err.Error(), "Use the form Class/attr/value, e.g. Task/id/42")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, redisURL, group)
	if err != nil {
		return err
	}
	defer backend.Close()

	out.Step("Loading %s from %s", key, watchFrom)
	snapshot, err := fetchSnapshot(ctx, watchFrom, key)
	if err != nil {
		return out.Error(fmt.Sprintf("failed to load %s", key), err.Error())
	}

	triggers := parliament.NewTriggers()
	jobs.RegisterTriggers(triggers)
	obj, err := triggers.Build(watchTrigger, snapshot)
	if err != nil {
		return out.Error(fmt.Sprintf("failed to build %s", key), err.Error(),
			fmt.Sprintf("Check --trigger (got %q)", watchTrigger))
	}

	w := cmd.OutOrStdout()
	criteria := filter.Criteria{Origin: watchOrigin}
	opts := parliament.Options{
		Role:          parliament.RoleMass,
		Subscriptions: []parliament.Key{key},
		OnApply: func(env *parliament.Envelope) {
			if !criteria.MatchesEnvelope(env) {
				return
			}
			if watchOutput == "json" {
				if err := roster.FormatJSONL(w, []*parliament.Envelope{env}); err != nil {
					glog.Warningf("[Watch] %v", err)
				}
				return
			}
			out.Event(time.Now(), string(env.Purpose), env.Origin, describe(env))
		},
	}
	peer, err := parliament.New(backend, opts, watchHooks(backend), triggers)
	if err != nil {
		return err
	}
	if _, err := peer.Track(obj); err != nil {
		return err
	}

	out.Step("Watching %s as %s (Ctrl-C to stop)", key, peer.Name())
	runErr := peer.Run(ctx)

	wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := peer.Withdraw(wctx); err != nil {
		out.Warning("failed to withdraw %s: %v", peer.Name(), err)
	}

	return runErr
}

// watchHooks registers the job hooks so pod updates relayed by several
// senators are applied in order token order, not arrival order. The observer
// never writes, so the recorder is only there to satisfy the path hook.
func watchHooks(backend *parliament.Backend) *parliament.Registry {
	hooks := parliament.NewRegistry()
	jobs.RegisterHooks(hooks, record.NewRedis(backend.Redis(), backend.Group()))
	return hooks
}

// describe renders an envelope's payload for the default output.
func describe(env *parliament.Envelope) string {
	switch env.Purpose {
	case parliament.PurposeUpdate:
		var u parliament.Update
		if err := env.Decode(&u); err != nil || u.Value == nil {
			return string(env.Data)
		}
		return fmt.Sprintf("%s%s = %s", u.Key(), u.Value.Path, u.Value.Value)
	default:
		return string(env.Data)
	}
}
