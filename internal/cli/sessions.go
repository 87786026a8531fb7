package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSessionsCmd(deps **Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			sessions, err := d.Store.List()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDATE\tSTATUS\tRECAP")
			for _, s := range sessions {
				recapMark := "-"
				if s.HasRecap {
					recapMark = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Meta.Name, s.Meta.Date, s.Meta.Status, recapMark)
			}
			return w.Flush()
		},
	}
}
