package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/fasecards/pkg/models"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Inspect shared collections",
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List shared collections by phase",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		collections, err := a.store.Collections.ListCollections(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), collections)
	}),
}

var collectionShowCmd = &cobra.Command{
	Use:   "show <collection-id>",
	Short: "Show a shared collection with its items",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		collection, err := a.store.Collections.GetCollection(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if collection == nil {
			return errors.Wrapf(models.ErrNotFound, "collection %s", args[0])
		}
		return printJSON(cmd.OutOrStdout(), collection)
	}),
}

func init() {
	collectionCmd.AddCommand(collectionListCmd, collectionShowCmd)
}
