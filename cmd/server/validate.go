package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/cotizador/backend/internal/infrastructure/catalog"
	"github.com/cotizador/backend/internal/usecase"
)

var (
	validateCatalogPath string
	validateSeparator   string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a catalog file and print its segments",
	Long: `Loads a catalog exactly as the server would and prints the number of
products per segment. Exits non-zero when required columns are missing.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateCatalogPath, "catalog", "listado.csv", "catalog file to check")
	validateCmd.Flags().StringVar(&validateSeparator, "separator", ";", "field separator")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	if utf8.RuneCountInString(validateSeparator) != 1 {
		return fmt.Errorf("separator must be a single character, got %q", validateSeparator)
	}
	sep, _ := utf8.DecodeRuneInString(validateSeparator)

	cat, err := catalog.LoadFile(validateCatalogPath, catalog.LoadOptions{Separator: sep})
	if err != nil {
		return fmt.Errorf("catalog %s is invalid: %w", validateCatalogPath, err)
	}

	segments := usecase.SortedSegments(usecase.ListSegments(cat))

	cmd.Printf("%s: %d products in %d segments\n", validateCatalogPath, cat.Len(), len(segments))
	for _, sc := range segments {
		name := sc.Segment
		if name == "" {
			name = "(sin segmento)"
		}
		cmd.Printf("  %-30s %d\n", name, sc.Count)
	}
	return nil
}
