package app

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/failtrack/internal/output"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or compare individual sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's metadata, failures and alerts",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionCompareCmd = &cobra.Command{
	Use:   "compare <session-a> <session-b>",
	Short: "Diff two sessions by error kind and failure count",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionCompare,
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionCompareCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	details, err := rt.openDetector().SessionDetails(args[0])
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(details)
	}

	fmt.Println(output.StyleHeader.Render("Session " + details.SessionID))
	if details.Archived {
		fmt.Println(output.StyleMuted.Render("(archived)"))
	}
	if details.Info != nil {
		fmt.Printf("Host: %s  PID: %d  Started: %s\n",
			details.Info.Hostname, details.Info.PID, details.Info.StartTime)
		if details.Info.WorkingDir != "" {
			fmt.Printf("Working dir: %s\n", details.Info.WorkingDir)
		}
	}
	fmt.Printf("Total failures: %d\n", details.TotalFailures)

	if len(details.FailuresByType) > 0 {
		fmt.Println()
		table := output.NewTable("ERROR TYPE", "COUNT")
		types := make([]string, 0, len(details.FailuresByType))
		for errorType := range details.FailuresByType {
			types = append(types, errorType)
		}
		sort.Strings(types)
		for _, errorType := range types {
			table.AddRow(errorType, fmt.Sprintf("%d", details.FailuresByType[errorType]))
		}
		table.Print()
	}

	if len(details.Alerts) > 0 {
		fmt.Println()
		fmt.Println(output.StyleBold.Render("Pending alerts:"))
		for _, a := range details.Alerts {
			style := output.SeverityStyle(a.Severity)
			fmt.Printf("  %s %s ×%d: %s\n",
				style.Render(a.Severity), a.PatternType, a.Occurrences,
				truncate(a.SampleMessage, 60))
		}
	}
	return nil
}

func runSessionCompare(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	cmp, err := rt.openDetector().CompareSessions(args[0], args[1])
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	}

	fmt.Println(output.StyleHeader.Render("Session comparison"))
	fmt.Printf("%s: %d failure(s)\n", cmp.SessionA, cmp.FailuresA)
	fmt.Printf("%s: %d failure(s)\n", cmp.SessionB, cmp.FailuresB)
	fmt.Printf("Difference: %+d\n", cmp.Difference)
	printErrorList("Common errors", cmp.CommonErrors)
	printErrorList("Unique to "+cmp.SessionA, cmp.UniqueToA)
	printErrorList("Unique to "+cmp.SessionB, cmp.UniqueToB)
	return nil
}

func printErrorList(label string, errorTypes []string) {
	if len(errorTypes) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, e := range errorTypes {
		fmt.Printf("  %s\n", e)
	}
}
