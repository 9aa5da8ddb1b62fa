package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// stdout receives command results.
var stdout io.Writer = os.Stdout

// outputResult writes result in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(stdout, result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIResolveSummary:
		formatResolveText(w, v)
	case CLIImportSummary:
		fmt.Fprintf(w, "Imported %d entities and %d deps; lifted %d deps\n", v.Entities, v.Deps, v.Lifted)
	case CLICount:
		fmt.Fprintf(w, "Stored %d edges\n", v.Stored)
	case []CLIFileDep:
		formatFileDepsText(w, v)
	case []CLIEntityDep:
		formatEntityDepsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatResolveText(w io.Writer, s CLIResolveSummary) {
	fmt.Fprintf(w, "Resolved %s in %dms\n", s.Path, s.DurationMs)
	fmt.Fprintf(w, "Database: %s\n", s.Database)
	fmt.Fprintf(w, "File deps: %d\n", s.FileDeps)

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, s.ByKind[k])
	}
	fmt.Fprintf(w, "Entity deps: %d\n", s.EntityDeps)
}

// formatFileDepsText prints file deps as aligned columns with 1-based
// "file:line:col" locations.
func formatFileDepsText(w io.Writer, deps []CLIFileDep) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSOURCE\tTARGET")
	for _, d := range deps {
		fmt.Fprintf(tw, "%s\t%s:%d:%d\t%s:%d:%d\n",
			d.Kind, d.SrcFile, d.SrcLine+1, d.SrcCol+1, d.TgtFile, d.TgtLine+1, d.TgtCol+1)
	}
	tw.Flush()
}

func formatEntityDepsText(w io.Writer, deps []CLIEntityDep) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSOURCE\tTARGET\tLINE")
	for _, d := range deps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", d.Kind, d.SrcName, d.TgtName, d.Line+1)
	}
	tw.Flush()
}

// parseKinds parses a comma-separated --kind value.
func parseKinds(s string) ([]core.DepKind, error) {
	var out []core.DepKind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := core.ParseDepKind(part)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
