package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionIDCmd = &cobra.Command{
	Use:   "session-id",
	Short: "Print the current (or newly created) session id",
	Long: `Resolve this invocation's session id and print it. Sibling hook
invocations with the same parent process resolve to the same id; an id
supplied via the session environment variable is returned verbatim.`,
	Args: cobra.NoArgs,
	RunE: runSessionID,
}

func init() {
	rootCmd.AddCommand(sessionIDCmd)
}

func runSessionID(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	fmt.Println(rt.identity().ResolveOrCreate())
	return nil
}
