package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nsxbet/sql-filter-validator/pkg/logger"
	"github.com/nsxbet/sql-filter-validator/pkg/types"
	"github.com/nsxbet/sql-filter-validator/pkg/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flags] <sql-file>",
	Short: "Validate SQL statements against mandatory filter rules",
	Long: `Validate the SQL query in a file against configured filter rules.

The tool parses the query, resolves table aliases across CTEs and
subqueries, and reports every ruled table occurrence that is not
protected by its mandatory filter.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	// Flags for validate command
	validateCmd.Flags().StringP("rules", "r", "", "path to rules configuration file")
	validateCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	validateCmd.Flags().Bool("fail-on-violation", false, "exit with non-zero code if violations are found")
	validateCmd.Flags().Int("max-depth", 0, "maximum query nesting depth (0 selects the default)")

	// Bind flags to viper
	_ = viper.BindPFlag("rules", validateCmd.Flags().Lookup("rules"))
	_ = viper.BindPFlag("output", validateCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("fail-on-violation", validateCmd.Flags().Lookup("fail-on-violation"))
	_ = viper.BindPFlag("max-depth", validateCmd.Flags().Lookup("max-depth"))
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Initialize logger
	logLevel := slog.LevelWarn
	if viper.GetBool("debug") {
		logLevel = slog.LevelDebug
	} else if viper.GetBool("verbose") {
		logLevel = slog.LevelInfo
	}
	log := logger.NewWithLevel(logLevel)
	slog.SetDefault(log.GetSlogLogger())

	slog.Debug("Starting validate command", "args", args)

	// Read SQL file
	sqlFile := args[0]
	slog.Debug("Reading SQL file", "file", sqlFile)
	sqlContent, err := os.ReadFile(sqlFile)
	if err != nil {
		return errors.Wrapf(err, "failed to read SQL file: %s", sqlFile)
	}
	slog.Debug("SQL file read successfully", "size", len(sqlContent))

	// Load rules
	v := validator.New()
	rulesPath := viper.GetString("rules")
	if rulesPath != "" {
		if err := v.WithConfig(rulesPath); err != nil {
			return err
		}
	}

	// Run validation
	var opts []validator.Option
	if depth := viper.GetInt("max-depth"); depth > 0 {
		opts = append(opts, validator.WithMaxDepth(depth))
	}
	result, err := v.Validate(context.Background(), string(sqlContent), opts...)
	if err != nil {
		return err
	}

	// Output results
	outputFormat := viper.GetString("output")
	if err := outputResult(result, outputFormat); err != nil {
		return err
	}

	if result.HasViolations() && viper.GetBool("fail-on-violation") {
		os.Exit(1)
	}

	return nil
}

func outputResult(result *types.ValidationResult, format string) error {
	switch format {
	case "json":
		return outputJSON(result)
	case "yaml":
		return outputYAML(result)
	case "text":
		return outputText(result)
	default:
		return errors.Errorf("unsupported output format: %s", format)
	}
}

func outputJSON(result *types.ValidationResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(result *types.ValidationResult) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	return encoder.Encode(result)
}

func outputText(result *types.ValidationResult) error {
	for _, violation := range result.Violations {
		fmt.Printf("[VIOLATION] %s at %s\n", violation.Table, violation.ScopePath)
		fmt.Printf("  missing: %s\n", violation.MissingFilter)
		for _, found := range violation.FoundFilters {
			fmt.Printf("  found instead: %s\n", found)
		}
		fmt.Printf("  %s\n", violation.Suggestion)
		fmt.Println()
	}

	keys := make([]string, 0, len(result.AppliedFilters))
	for key := range result.AppliedFilters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		applied := result.AppliedFilters[key]
		fmt.Printf("[OK] %s: %s %s %s (%s at %s)\n",
			applied.Table, applied.Column, applied.Operator, applied.Value,
			applied.Source, applied.ScopePath)
	}

	for _, amb := range result.Ambiguities {
		fmt.Printf("[AMBIGUOUS] column %q at %s could belong to %v\n",
			amb.Column, amb.ScopePath, amb.Candidates)
	}

	fmt.Println()
	fmt.Println(result.String())
	return nil
}
