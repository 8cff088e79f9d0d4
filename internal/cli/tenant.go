package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metastack/metastore/internal/common"
	"github.com/metastack/metastore/pkg/types"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage registered tenants",
	}
	cmd.AddCommand(newTenantCreateCmd())
	cmd.AddCommand(newTenantListCmd())
	return cmd
}

func newTenantCreateCmd() *cobra.Command {
	var generate bool
	cmd := &cobra.Command{
		Use:   "create [code]",
		Short: "Register a tenant code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Shutdown(ctx)

			var code types.TenantCode
			switch {
			case len(args) == 1 && !generate:
				code = types.TenantCode(args[0])
			case len(args) == 0 && generate:
				generated, err := common.GenerateTenantCode()
				if err != nil {
					return err
				}
				code = types.TenantCode(generated)
			default:
				return fmt.Errorf("provide a tenant code or --generate, not both")
			}
			if err := s.CreateTenant(ctx, code); err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]string{"tenant": string(code)})
			} else {
				cmd.Printf("tenant %s created\n", code)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "Generate a random tenant code")
	return cmd
}

func newTenantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Shutdown(ctx)

			codes, aerr := s.ListTenants(ctx)
			if aerr != nil {
				return aerr
			}
			if jsonOutput {
				printJSON(codes)
				return nil
			}
			if len(codes) == 0 {
				cmd.Println("no tenants registered")
				return nil
			}
			for _, code := range codes {
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}
}
