package cmd

import (
	"github.com/spf13/cobra"

	"github.com/example/fasecards/internal/database"
	"github.com/example/fasecards/pkg/models"
)

var learnerCmd = &cobra.Command{
	Use:   "learner",
	Short: "Manage learners",
}

var learnerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a learner and give them a copy of every collection",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		learner := &models.Learner{CreatedAt: a.clock.Now()}
		learner.ID, _ = cmd.Flags().GetString("id")
		learner.Name, _ = cmd.Flags().GetString("name")
		learner.TelegramChatID, _ = cmd.Flags().GetInt64("chat-id")

		var provisioned int
		err := a.store.WithTx(ctx, func(repos *database.Repositories) error {
			if err := repos.Learners.Create(ctx, learner); err != nil {
				return err
			}
			var err error
			provisioned, err = repos.Learners.ProvisionLearner(ctx, learner.ID)
			return err
		})
		if err != nil {
			return err
		}

		a.log.WithField("learner_id", learner.ID).WithField("collections", provisioned).Info("learner created")
		return printJSON(cmd.OutOrStdout(), learner)
	}),
}

var learnerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learners",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		learners, err := a.store.Learners.GetAll(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), learners)
	}),
}

var learnerCollectionsCmd = &cobra.Command{
	Use:   "collections <learner-id>",
	Short: "List a learner's private collections",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		collections, err := a.store.Collections.ListPrivateCollections(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), collections)
	}),
}

func init() {
	learnerAddCmd.Flags().String("id", "", "learner id (generated when empty)")
	learnerAddCmd.Flags().String("name", "", "display name")
	learnerAddCmd.Flags().Int64("chat-id", 0, "telegram chat id for reminders, 0 disables them")
	learnerCmd.AddCommand(learnerAddCmd, learnerListCmd, learnerCollectionsCmd)
}
