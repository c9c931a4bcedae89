package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/latticekit/lattice/internal/cli/ui"
)

var contractsAddr string

func init() {
	contractsCmd.Flags().StringVar(&contractsAddr, "addr", "http://localhost:8089",
		"Base URL of the application's introspection endpoint")
}

var contractsCmd = &cobra.Command{
	Use:   "contracts [name]",
	Short: "List declared contracts, or the implementers of one contract",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return printUnits(contractsAddr, args[0])
		}
		return printContracts(contractsAddr)
	},
}

func printContracts(addr string) error {
	var contracts []struct {
		Name  string `json:"name"`
		Units int    `json:"units"`
	}
	if err := fetchJSON(addr+"/contracts", &contracts); err != nil {
		return err
	}

	ui.Header(os.Stdout, fmt.Sprintf("Contracts (%d)", len(contracts)), noColor)

	table := ui.NewTable(os.Stdout, []string{"CONTRACT", "UNITS"}, noColor)
	for _, c := range contracts {
		table.AddRow(c.Name, strconv.Itoa(c.Units))
	}
	table.Render()
	return nil
}

func printUnits(addr, name string) error {
	var payload struct {
		Contract   string              `json:"contract"`
		Generation uint64              `json:"generation"`
		Components map[string][]string `json:"components"`
	}
	if err := fetchJSON(addr+"/contracts/"+name+"/units", &payload); err != nil {
		return err
	}

	ui.Header(os.Stdout, fmt.Sprintf("%s (generation %d)", payload.Contract, payload.Generation), noColor)

	components := make([]string, 0, len(payload.Components))
	for component := range payload.Components {
		components = append(components, component)
	}
	sort.Strings(components)

	table := ui.NewTable(os.Stdout, []string{"COMPONENT", "UNIT"}, noColor)
	for _, component := range components {
		for _, unit := range payload.Components[component] {
			table.AddRow(component, unit)
		}
	}
	table.Render()
	return nil
}

func fetchJSON(url string, into interface{}) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to reach introspection endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("introspection endpoint returned %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(into)
}
