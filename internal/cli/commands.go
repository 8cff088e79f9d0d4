// Package cli implements the metastorectl administrative commands: schema
// deployment and tenant management. Runtime clients use the DAL directly;
// this tool only covers setup tasks.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metastack/metastore/internal/metasrv/config"
	"github.com/metastack/metastore/internal/metasrv/dal"
	"github.com/metastack/metastore/internal/metasrv/dal/dbmanager"
	"github.com/metastack/metastore/internal/metasrv/dal/dialect"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metastorectl",
	Short: "metastorectl administers a metadata store deployment",
	Long: `metastorectl administers a metadata store deployment.
It deploys the relational schema and manages the registered tenants.`,
	PersistentPreRun: preRunHandlePersistents,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newTenantCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.Execute()
	if err != nil {
		if jsonOutput {
			kv := map[string]string{
				"error": err.Error(),
			}
			printJSON(kv)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func preRunHandlePersistents(cmd *cobra.Command, args []string) {
	if err := config.LoadConfig(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load config file: %s\n", err.Error())
		os.Exit(1)
	}
}

// openStore connects to the configured backend. The caller shuts the store
// down when done.
func openStore(ctx context.Context) (*dal.Store, error) {
	cfg := config.Config()
	pool, err := dbmanager.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to backend: %w", err)
	}
	d, err := dialect.New(cfg.Backend)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return dal.New(pool, d, cfg.Pool), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of metastorectl",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				kv := map[string]string{
					"version": "v0.1.0",
				}
				printJSON(kv)
			} else {
				cmd.Println("metastorectl v0.1.0")
			}
		},
	}
}

// printJSON prints the given map as JSON to stdout
func printJSON(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}
