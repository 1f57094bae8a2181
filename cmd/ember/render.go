package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ember/internal/diag"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	infoColor  = color.New(color.FgCyan)
)

// configureColor applies the --color flag before anything prints.
func configureColor(cmd *cobra.Command) error {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return err
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color %q (expected: auto|on|off)", mode)
	}
	return nil
}

// renderDiagnostics prints one cycle's diagnostics.
func renderDiagnostics(out io.Writer, items []diag.Diagnostic) {
	for _, d := range items {
		var label string
		switch {
		case d.Severity >= diag.SevError:
			label = errorColor.Sprint("error")
		case d.Severity == diag.SevWarning:
			label = warnColor.Sprint("warning")
		default:
			label = infoColor.Sprint("info")
		}
		if d.File != "" {
			fmt.Fprintf(out, "%s[%s] %s: %s (%s)\n", label, d.Phase, d.File, d.Message, d.Code)
		} else {
			fmt.Fprintf(out, "%s[%s] %s (%s)\n", label, d.Phase, d.Message, d.Code)
		}
	}
}
