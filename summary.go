package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pterm/pterm"
	"github.com/rotisserie/eris"

	"flatsift/models"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newListings(results map[string]models.Result) []*models.Listing {
	var out []*models.Listing
	for _, name := range sortedKeys(results) {
		out = append(out, results[name].New...)
	}
	return out
}

func renderSummary(results map[string]models.Result) {
	pterm.DefaultHeader.
		WithBackgroundStyle(pterm.NewStyle(pterm.BgGreen)).
		WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
		Println("Run completed")
	pterm.Println()

	counts := pterm.TableData{{"Constraint", "New", "Duplicate", "Ignored"}}
	for _, name := range sortedKeys(results) {
		res := results[name]
		counts = append(counts, []string{
			name,
			fmt.Sprintf("%d", len(res.New)),
			fmt.Sprintf("%d", len(res.Duplicate)),
			fmt.Sprintf("%d", len(res.Ignored)),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(counts).Render()

	for _, name := range sortedKeys(results) {
		res := results[name]
		if len(res.New) == 0 {
			continue
		}
		pterm.Println()
		pterm.DefaultSection.WithLevel(2).Println(name)

		rows := pterm.TableData{{"ID", "Title", "Area", "Cost", "Postal code", "Stations"}}
		for _, l := range res.New {
			rows = append(rows, []string{
				l.ID,
				truncate(l.Title, 40),
				formatFloat(l.Area, "m²"),
				formatFloat(l.Cost, l.Currency),
				l.Meta.PostalCode,
				fmt.Sprintf("%d", len(l.Meta.MatchedStations)),
			})
		}
		pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	}
	pterm.Println()
}

func formatFloat(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f %s", *v, unit)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeResults(path string, results map[string]models.Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode results")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}
