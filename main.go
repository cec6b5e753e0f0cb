package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "baseferry",
	Short: "NocoDB to Baserow migration tool for the CamillaDataset",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [config.toml]",
	Short: "Import JSON exports into Baserow in dependency order",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigrateCmd,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [config.toml]",
	Short: "Pull source tables from NocoDB into JSON export files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runFetchCmd,
}

var provisionCmd = &cobra.Command{
	Use:   "provision [config.toml]",
	Short: "Create destination tables, fields, and relationship fields",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProvisionCmd,
}

var migrateOpts migrateOptions

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to migration TOML config file")

	migrateCmd.Flags().BoolVar(&migrateOpts.DryRun, "dry-run", false, "preview the run without writing any rows")
	migrateCmd.Flags().BoolVar(&migrateOpts.Clear, "clear", false, "delete existing rows from each table before import")
	migrateCmd.Flags().StringVar(&migrateOpts.Table, "table", "", "restrict the run to one table")
	migrateCmd.Flags().StringVar(&migrateOpts.RegistryPath, "registry", "", "SQLite file persisting identifier mappings across runs")

	rootCmd.AddCommand(migrateCmd, fetchCmd, provisionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfig loads the TOML config named by the positional arg or the
// --config flag, the positional arg taking precedence.
func resolveConfig(args []string) (*MigrationConfig, error) {
	path := configPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, fmt.Errorf("config file required: baseferry <command> <config.toml> or --config <config.toml>")
	}
	return loadConfig(path)
}

func runMigrateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}

	creds := loadCredentials()
	if creds.APIToken == "" {
		return fmt.Errorf("API_TOKEN must be set (environment or .env file)")
	}

	ctx := context.Background()
	client := newBaserowClient(cfg.Baserow.BaseURL, creds.APIToken, cfg.rateLimitInterval())

	log.Printf("baseferry: NocoDB to Baserow migration")
	log.Printf("config: base_url=%s database_id=%d dry_run=%t clear=%t table=%q",
		cfg.Baserow.BaseURL, cfg.Baserow.DatabaseID, migrateOpts.DryRun, migrateOpts.Clear, migrateOpts.Table)

	// Table discovery needs a JWT session; data operations run on the token.
	if creds.UserEmail != "" && creds.UserPassword != "" {
		if err := client.TokenAuth(ctx, creds.UserEmail, creds.UserPassword); err != nil {
			log.Printf("WARN: could not obtain JWT session: %v", err)
		}
	} else {
		log.Printf("WARN: USER_EMAIL/USER_PASSWORD not set; structural operations will fail")
	}

	return newMigrator(cfg, client, migrateOpts).run(ctx)
}

func runFetchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}
	return runFetch(context.Background(), cfg, loadCredentials())
}

func runProvisionCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(args)
	if err != nil {
		return err
	}

	creds := loadCredentials()
	if creds.APIToken == "" {
		return fmt.Errorf("API_TOKEN must be set (environment or .env file)")
	}
	if creds.UserEmail == "" || creds.UserPassword == "" {
		return fmt.Errorf("USER_EMAIL and USER_PASSWORD are required for provisioning")
	}

	ctx := context.Background()
	client := newBaserowClient(cfg.Baserow.BaseURL, creds.APIToken, cfg.rateLimitInterval())
	if err := client.TokenAuth(ctx, creds.UserEmail, creds.UserPassword); err != nil {
		return fmt.Errorf("provisioning needs a JWT session: %w", err)
	}

	return runProvision(ctx, cfg, client)
}
