package prune

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

const (
	outputFilePerms = 0o0600
	separatorWidth  = 110
)

// output keys consumed by the caller, comma-joined lists.
const (
	keyDeleted         = "deleted"
	keyFailed          = "failed"
	keyNeedsAssistance = "needs-manual-assistance"
)

// Reporter exposes the three outcome buckets to the external caller:
// machine-readable key=value lines appended to the output file, plus a
// console block for versions GitHub support has to delete by hand.
type Reporter struct {
	console io.Writer
}

func NewReporter(console io.Writer) *Reporter {
	return &Reporter{console: console}
}

func (r *Reporter) Report(ledger *Ledger, outputPath string) error {
	if err := r.writeOutputs(ledger, outputPath); err != nil {
		return err
	}

	r.printAssistanceBlock(ledger.NeedsAssistance())
	r.printSummary(ledger)

	return nil
}

func (r *Reporter) writeOutputs(ledger *Ledger, outputPath string) error {
	if outputPath == "" {
		return nil
	}

	file, err := os.OpenFile(outputPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, outputFilePerms)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	defer file.Close()

	outputs := []struct {
		key     string
		entries []string
	}{
		{keyNeedsAssistance, ledger.NeedsAssistance()},
		{keyDeleted, ledger.Deleted()},
		{keyFailed, ledger.Failed()},
	}

	for _, output := range outputs {
		line := fmt.Sprintf("%s=%s\n", output.key, strings.Join(output.entries, ","))
		if _, err := file.WriteString(line); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
	}

	return nil
}

// printAssistanceBlock lists the publicly visible versions the API
// refused to delete, with remediation guidance, in one batch.
func (r *Reporter) printAssistanceBlock(entries []string) {
	if len(entries) == 0 {
		return
	}

	separator := strings.Repeat("─", separatorWidth)

	fmt.Fprintln(r.console)
	fmt.Fprintln(r.console, separator)
	fmt.Fprintln(r.console,
		"\nThe following images are public and have more than 5000 downloads. "+
			"These cannot be deleted via the GitHub API:")

	for _, entry := range entries {
		fmt.Fprintf(r.console, "\t- %s\n", entry)
	}

	fmt.Fprintln(r.console,
		"\nIf you still want to delete these images, contact GitHub support.\n"+
			"See https://docs.github.com/en/rest/reference/packages for more info.")
	fmt.Fprintln(r.console, separator)
}

func (r *Reporter) printSummary(ledger *Ledger) {
	table := tablewriter.NewWriter(r.console)

	table.Append([]string{"OUTCOME", "COUNT"}) //nolint:errcheck

	rows := [][]string{
		{keyDeleted, strconv.Itoa(len(ledger.Deleted()))},
		{keyFailed, strconv.Itoa(len(ledger.Failed()))},
		{keyNeedsAssistance, strconv.Itoa(len(ledger.NeedsAssistance()))},
	}

	for _, row := range rows {
		table.Append(row) //nolint:errcheck
	}

	table.Render() //nolint:errcheck
}
