package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/latticekit/lattice/internal/cli/ui"
	"github.com/latticekit/lattice/internal/config"
	"github.com/latticekit/lattice/internal/storage"
)

var (
	tablesAddr        string
	tablesDatabaseURL string
	tablesConfigFile  string
)

func init() {
	tablesCmd.Flags().StringVar(&tablesAddr, "addr", "",
		"Base URL of the application's introspection endpoint")
	tablesCmd.Flags().StringVar(&tablesDatabaseURL, "database-url", "",
		"Read the catalog directly from this database instead")
	tablesCmd.Flags().StringVar(&tablesConfigFile, "config", "",
		"Path to the configuration file (default lattice.yml)")
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the reconciled tables, or the raw database catalog",
	Long: `With --addr, prints the reconciled table set of a running application,
virtual tables included. With --database-url (or DATABASE_URL, or the
database section of lattice.yml), reads the raw catalog rows straight
from the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tablesAddr != "" {
			return printReconciledTables(tablesAddr)
		}
		return printCatalog(cmd)
	},
}

func printReconciledTables(addr string) error {
	var tables []struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Virtual bool   `json:"virtual"`
	}
	if err := fetchJSON(addr+"/tables", &tables); err != nil {
		return err
	}

	ui.Header(os.Stdout, fmt.Sprintf("Tables (%d)", len(tables)), noColor)

	out := ui.NewTable(os.Stdout, []string{"NAME", "ID", "KIND"}, noColor)
	for _, t := range tables {
		kind := "storage"
		if t.Virtual {
			kind = "virtual"
		}
		out.AddRow(t.Name, strconv.FormatInt(t.ID, 10), kind)
	}
	out.Render()
	return nil
}

func printCatalog(cmd *cobra.Command) error {
	cfg, err := config.LoadFrom(tablesConfigFile)
	if err != nil {
		return err
	}

	url := tablesDatabaseURL
	if url == "" {
		url = config.GetDatabaseURL(cfg)
	}
	if url == "" {
		return fmt.Errorf("no database configured: pass --database-url or set DATABASE_URL")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	store := storage.NewSQLStore(db, storage.WithCatalogTable(cfg.Database.CatalogTable))

	rows, err := store.Catalog(cmd.Context())
	if err != nil {
		return err
	}

	ui.Header(os.Stdout, fmt.Sprintf("Catalog %q (%d rows)", cfg.Database.CatalogTable, len(rows)), noColor)

	out := ui.NewTable(os.Stdout, []string{"NAME", "ID"}, noColor)
	for _, row := range rows {
		out.AddRow(row.Name, strconv.FormatInt(row.ID, 10))
	}
	out.Render()
	return nil
}
