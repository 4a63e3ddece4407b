package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/errors"
)

func errorsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "errors [code]",
		Short: "List or explain parley error codes",
		Long: `Without arguments, list every error code parley can report. With a
code (e.g. "E040"), print the full explanation for it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return explainCode(strings.ToUpper(args[0]), asJSON)
			}
			listCodes()
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the explanation as JSON")

	return cmd
}

func listCodes() {
	codes := errors.GetAllCodes()
	sort.Strings(codes)

	fmt.Println()
	for _, code := range codes {
		tmpl, ok := errors.GetTemplate(code)
		if !ok {
			continue
		}
		fmt.Printf("  %s  %-9s %s\n", code, tmpl.Category, tmpl.Message)
	}
	fmt.Println()
	info("Run 'parley errors <code>' for details on one code")
}

func explainCode(code string, asJSON bool) error {
	if _, ok := errors.GetTemplate(code); !ok {
		return errors.Newf(errors.CategoryCLI, "unknown error code %q", code).
			WithSuggestion("Run 'parley errors' for the full list")
	}

	e := errors.New(code)
	if asJSON {
		fmt.Println(e.FormatJSON())
		return nil
	}
	fmt.Print(e.Format())
	return nil
}
