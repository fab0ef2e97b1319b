package cli

import (
	"database/sql"
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	rerrors "github.com/coral-mesh/remora/internal/errors"
	"github.com/coral-mesh/remora/internal/sink"
)

type replayOptions struct {
	db      string
	session string
}

func newReplayCmd() *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print a recorded trace session",
		Long: `Read a session recorded by the DuckDB sink and print its events in
recorded order. Without --session the sessions in the file are listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.db, "db", "", "path to the recorded database file")
	cmd.Flags().StringVar(&opts.session, "session", "", "session id to replay")
	rerrors.Must(cmd.MarkFlagRequired("db"), "mark --db required")
	return cmd
}

func runReplay(cmd *cobra.Command, opts *replayOptions) error {
	db, err := sink.OpenDB(opts.db)
	if err != nil {
		return err
	}
	defer rerrors.DeferClose(zerolog.Nop(), db, "close replay database")

	if opts.session == "" {
		return listSessions(cmd, db)
	}
	return printSession(cmd, db, opts.session)
}

func listSessions(cmd *cobra.Command, db *sql.DB) error {
	sessions, err := sink.Sessions(db)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		cmd.Println("no recorded sessions")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tROOT\tSTARTED\tSTOPPED")
	for _, s := range sessions {
		stopped := "-"
		if s.Stopped != nil {
			stopped = s.Stopped.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.ID, s.Root, s.Started.Format("2006-01-02 15:04:05"), stopped)
	}
	return w.Flush()
}

func printSession(cmd *cobra.Command, db *sql.DB, sessionID string) error {
	events, err := sink.SessionEvents(db, sessionID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no events recorded for session %s", sessionID)
	}

	for _, e := range events {
		cmd.Printf("%6d  %-9s %s", e.Seq, e.Kind, describeEvent(e))
		cmd.Println()
	}
	return nil
}

// describeEvent renders one replayed event the way the live log sink
// would have.
func describeEvent(e sink.Event) string {
	where := e.Function
	if e.File != "" {
		where = fmt.Sprintf("%s (%s)", e.Function, e.File)
	}
	switch e.Kind {
	case "return":
		return fmt.Sprintf("%s -> %s", where, e.Value)
	case "exception":
		return fmt.Sprintf("%s raised %s: %s", where, e.Symbol, e.Value)
	case "assign":
		return fmt.Sprintf("%s: %s = %s", where, e.Symbol, e.Value)
	case "invoke":
		suffix := ""
		if e.Method {
			suffix = " (method)"
		}
		return fmt.Sprintf("%s: %s/%d%s", where, e.Callable, e.Argc, suffix)
	default:
		return where
	}
}
