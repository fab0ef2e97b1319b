package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/spf13/cobra"
)

// Interpreters remora's layout adapters can decode.
var interpreterNames = []string{"python", "python3"}

type psOptions struct {
	name string
	all  bool
}

func newPsCmd() *cobra.Command {
	opts := &psOptions{}

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List candidate attach targets",
		Long: `List running interpreter processes remora could attach to.

By default only processes whose executable looks like a supported
interpreter are shown; --all lists everything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPs(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "only show processes whose name or command line contains this substring")
	cmd.Flags().BoolVar(&opts.all, "all", false, "list all processes, not just interpreters")
	return cmd
}

type psEntry struct {
	pid     int32
	name    string
	cmdline string
}

func runPs(cmd *cobra.Command, opts *psOptions) error {
	procs, err := process.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	var entries []psEntry
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// Gone or unreadable between listing and inspection.
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil {
			cmdline = ""
		}

		if !opts.all && !isInterpreter(name) {
			continue
		}
		if opts.name != "" &&
			!strings.Contains(name, opts.name) &&
			!strings.Contains(cmdline, opts.name) {
			continue
		}
		entries = append(entries, psEntry{pid: p.Pid, name: name, cmdline: cmdline})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].pid < entries[j].pid })

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tCOMMAND")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.pid, e.name, e.cmdline)
	}
	return w.Flush()
}

func isInterpreter(name string) bool {
	lower := strings.ToLower(name)
	for _, interp := range interpreterNames {
		if strings.HasPrefix(lower, interp) {
			return true
		}
	}
	return false
}
