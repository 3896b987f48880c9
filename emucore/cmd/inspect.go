package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/emucore/replaylog"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <db>",
	Short: "Print the records of a replay log.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := replaylog.Load(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return log.Save(out)
		}

		for i, r := range log.Records {
			fmt.Fprintf(out, "%6d %s\n", i, r)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Bool("json", false, "print one JSON record per line")
}
