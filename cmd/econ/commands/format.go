package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/pipeline"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// every command prints through these helpers
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a titled banner
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	total := 0
	for i, w := range widths {
		total += w
		if i < len(widths)-1 {
			total += 2
		}
	}
	fmt.Println(strings.Repeat("─", total))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintRunSummary prints the outcome of a pipeline run
func PrintRunSummary(s *pipeline.RunSummary) {
	PrintHeader("Pipeline run " + s.RunID)
	PrintKeyValue("Status", s.Status, 12)
	PrintKeyValue("Series", fmt.Sprintf("%d/%d succeeded", s.Succeeded, s.Total), 12)
	PrintKeyValue("Observations", fmt.Sprintf("%d", s.Observations), 12)
	PrintKeyValue("Dropped", fmt.Sprintf("%d", s.Dropped), 12)
	PrintKeyValue("Rebuild", fmt.Sprintf("%v", s.Rebuild), 12)
	PrintKeyValue("Duration", s.Duration().Round(time.Millisecond).String(), 12)

	if len(s.Failures) > 0 {
		fmt.Println()
		widths := []int{10, 10, 60}
		PrintTableHeader([]string{"SERIES", "STAGE", "ERROR"}, widths)
		for _, f := range s.Failures {
			PrintTableRow([]string{f.SeriesID, string(f.Stage), truncate(f.Error, 60)}, widths)
		}
	}
	PrintSeparator()
}

// formatFloat renders an optional number; nil prints as "-"
func formatFloat(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, *v)
}

// formatDate renders a calendar date; the zero time prints as "-"
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
