package cli

import (
	"github.com/spf13/cobra"

	"github.com/metastack/metastore/internal/metasrv/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Deploy the metadata store schema on the configured backend",
		Long: `Deploy the metadata store schema on the configured backend.
The DDL is idempotent; running init against an existing deployment is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Shutdown(ctx)

			if err := s.DeploySchema(ctx); err != nil {
				return err
			}
			if err := s.EnsureTenants(ctx, config.Config().TenantList); err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]string{"status": "schema deployed"})
			} else {
				cmd.Println("schema deployed")
			}
			return nil
		},
	}
}
