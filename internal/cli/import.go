package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quiz-desk/internal/importer"
)

// NewImportCmd loads questions from a JSON or CSV file into the configured store.
func NewImportCmd(configPath *string) *cobra.Command {
	var formatFlag string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import questions from a JSON or CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			format, err := importer.FormatFromPath(path)
			if formatFlag != "" {
				format, err = importer.ParseFormat(formatFlag)
			}
			if err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := loadBackend(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer b.Close()

			result, importErr := b.service.ImportQuestions(cmd.Context(), f, format)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total: %d, imported: %d, skipped: %d\n",
				result.TotalQuestions, result.ImportedQuestions, result.SkippedQuestions)
			for _, msg := range result.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			return importErr
		},
	}
	cmd.Flags().StringVar(&formatFlag, "format", "", "file format (json|csv); inferred from the extension when empty")
	return cmd
}
