package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wisp-engine/wisp/pkg/state"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded engine runs",
		Long:  `Display the runs recorded under .wisp/state, including whether each one is still alive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print run states as JSON")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Wisp",
		Long:  `Print the version number of Wisp`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wisp v%s\n", version)
		},
	}
}

func runStatus(jsonOutput bool) error {
	sm := state.NewManager(projectRoot, nil)

	runs, err := sm.DiscoverRuns()
	if err != nil {
		return fmt.Errorf("failed to discover runs: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(runs) == 0 {
		printInfo("No recorded runs")
		return nil
	}

	// Newest first.
	ordered := make([]*state.RunState, 0, len(runs))
	for _, run := range runs {
		ordered = append(ordered, run)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.After(ordered[j].StartedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tSTARTED\tFRAMES\tCONTACTS\tSTALLS")
	fmt.Fprintln(w, "-------\t------\t-------\t------\t--------\t------")

	for _, run := range ordered {
		session := run.SessionID
		if len(session) > 8 {
			session = session[:8]
		}

		status := color.WhiteString(string(run.Status))
		if sm.IsActive(run) {
			status = color.GreenString("running")
		} else if run.Status == state.RunStatusRunning {
			// Says running but nobody is home.
			status = color.RedString("dead")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			session,
			status,
			run.StartedAt.Format("15:04:05"),
			run.Frame,
			run.Contacts,
			run.Stalls,
		)
	}

	return w.Flush()
}
