package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteQueryResult writes a query response to w in the given format.
func WriteQueryResult(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Fprintf(w, "\nSources:\n")
		for i, src := range resp.Sources {
			fmt.Fprintf(w, "  %d. [item %d] %s\n", i+1, src.ItemID, utils.Truncate(src.Text, 120))
		}
	}
	return nil
}

// WriteItems writes an item listing to w in the given format.
func WriteItems(w io.Writer, items []*models.Item, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "No items ingested yet.")
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(w, "%-6d %-5s %-20s %s\n",
			item.ID,
			item.Kind,
			item.CreatedAt.Format(time.RFC3339),
			utils.Truncate(item.Content, 80))
	}
	return nil
}
