package cmd

import (
	"github.com/spf13/cobra"

	"github.com/example/fasecards/internal/database"
	"github.com/example/fasecards/internal/excel"
)

// importCmd loads shared collections from a spreadsheet
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import shared decks and quizzes from an xlsx or csv file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()

		config := excel.DefaultImportConfig()
		config.FilePath = args[0]
		config.SheetName, _ = cmd.Flags().GetString("sheet")
		config.StartRow, _ = cmd.Flags().GetInt("start-row")

		var result *excel.ImportResult
		provisioned := 0
		err := a.store.WithTx(ctx, func(repos *database.Repositories) error {
			var err error
			result, err = excel.NewImporter(repos.Collections, a.log).Import(ctx, config)
			if err != nil {
				return err
			}
			provisioned, err = repos.Learners.ProvisionAll(ctx)
			return err
		})
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"import":      result,
			"provisioned": provisioned,
		})
	}),
}

func init() {
	importCmd.Flags().String("sheet", "Sheet1", "sheet to read from xlsx files")
	importCmd.Flags().Int("start-row", 2, "first row to import (1-based)")
}
