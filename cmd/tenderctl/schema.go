package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tender-workflow/internal/tender/requirement"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Requirement schema tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file.json]",
		Short: "Check a requirements payload offline",
		Long: `Runs the submission-time checks on a requirements JSON array:
shape, unique field names per stage, and a total of exactly 100%.`,
		Args: cobra.ExactArgs(1),
		RunE: runSchemaValidate,
	})
	return cmd
}

func runSchemaValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	items, err := requirement.ParsePayload(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	groups := requirement.GroupByStage(items)
	for _, stage := range requirement.DesignerStages {
		group := groups[stage]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s\n", stage)
		for _, it := range group {
			marker := " "
			if it.Required {
				marker = "*"
			}
			fmt.Fprintf(out, "  %s %-40s %6.2f%%\n", marker, it.FieldName, it.Percentage)
		}
	}
	fmt.Fprintf(out, "OK: %d requirements, total %s%%\n", len(items), requirement.Total(items).String())
	return nil
}
