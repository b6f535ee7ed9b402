package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quiz-desk/internal/domain"
)

// NewHistoryCmd prints a user's score history, most recent first.
func NewHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history <username>",
		Short: "Show the score history of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadBackend(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer b.Close()

			records, err := b.service.History().HistoryFor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "no quizzes taken by %s\n", args[0])
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tSCORE\tPERCENT")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%d/%d\t%.1f%%\n", r.Timestamp.Local().Format("2006-01-02 15:04"), r.Score, r.Total, r.Percentage())
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "overall: %.1f%%\n", domain.AggregatePercentage(records))
			return nil
		},
	}
}
