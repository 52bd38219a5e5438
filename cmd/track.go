package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/YoungRaeKimm/CS492-project/pkg/database"
	"github.com/YoungRaeKimm/CS492-project/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	trackStatus string
	trackAll    bool
)

var trackCmd = &cobra.Command{
	Use:   "track [dataset]",
	Short: "Query the run tracking database",
	Long:  `Query recorded training runs for a specific dataset or all datasets`,
	Run:   runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackStatus, "status", "", "filter by status (running, completed, failed)")
	trackCmd.Flags().BoolVar(&trackAll, "all", false, "query all datasets")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) {
	if !trackAll && len(args) == 0 {
		color.Red("Error: either provide a dataset or use --all flag")
		cmd.Help()
		os.Exit(1)
	}

	if trackAll && len(args) > 0 {
		color.Red("Error: cannot use both dataset and --all flag together")
		cmd.Help()
		os.Exit(1)
	}

	orch, err := orchestrator.NewOrchestrator(configFile)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}

	db := orch.GetDB()
	if db == nil || !db.IsEnabled() {
		color.Red("Error: Database is not enabled. Please enable it in config.yaml")
		os.Exit(1)
	}

	if trackStatus != "" {
		trackStatus = strings.ToUpper(trackStatus)
	}

	var records []database.RunRecord

	if trackAll {
		records, err = db.QueryAllRuns(trackStatus)
		if err != nil {
			color.Red("Failed to query database: %v", err)
			os.Exit(1)
		}
	} else {
		dataset := args[0]
		records, err = db.QueryRuns(dataset, trackStatus)
		if err != nil {
			color.Red("Failed to query database: %v", err)
			os.Exit(1)
		}

		if len(records) == 0 {
			color.Yellow("[INF] No runs recorded for dataset %s.", dataset)
			os.Exit(0)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("ID\tDATASET\tILTYPE\tSPLIT\tDEVICE\tMEM\tHEADS\tSTATUS\tEXIT\tSTARTED\tFINISHED"))
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, r := range records {
		statusColor := color.GreenString
		if r.Status == "FAILED" {
			statusColor = color.RedString
		} else if r.Status == "RUNNING" {
			statusColor = color.YellowString
		}

		exit := "-"
		if r.ExitCode.Valid {
			exit = fmt.Sprintf("%d", r.ExitCode.Int64)
		}

		finished := "-"
		if r.FinishedAt.Valid {
			finished = r.FinishedAt.Time.Format("2006-01-02 15:04:05")
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Dataset,
			r.ILType,
			r.Split,
			r.Device,
			r.MemorySize,
			r.NumHead,
			statusColor(r.Status),
			exit,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
		)
	}
	w.Flush()

	color.Green("\nTotal records: %d", len(records))
}
