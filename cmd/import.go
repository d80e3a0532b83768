package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/engdrill/internal/excel"
)

var (
	importUser     string
	importSheet    string
	importStartRow int
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.csv>",
	Short: "Import detected mistakes for a user from an Excel or CSV file",
	Long: `Columns: A type, B original text, C correction, D explanation,
E context, F severity (1-5), G example usage. The first row is a header.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importUser == "" {
			return errors.New("--user is required")
		}

		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := excel.DefaultImportConfig()
		cfg.FilePath = args[0]
		cfg.SheetName = importSheet
		cfg.StartRow = importStartRow

		result, err := excel.ImportDetections(cmd.Context(), cfg, importUser, a.svc)
		if err != nil {
			return err
		}

		fmt.Printf("Processed: %d\n", result.TotalProcessed)
		fmt.Printf("Stored: %d\n", result.Stored)
		fmt.Printf("Skipped: %d\n", result.Skipped)
		for _, e := range result.Errors {
			fmt.Println("  " + e)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importUser, "user", "", "user the mistakes belong to")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet to read, the first one when empty")
	importCmd.Flags().IntVar(&importStartRow, "start-row", 2, "first data row (1-based)")
	rootCmd.AddCommand(importCmd)
}
