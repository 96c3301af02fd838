package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"meridian-hq/meridian/pkg/cli"
	"meridian-hq/meridian/pkg/dictionary"
	"meridian-hq/meridian/pkg/rules"
)

var lintFlags struct {
	file   string
	dir    string
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate definition files",
	Long: `Validate ruleset and data dictionary definition files.

The lint command parses definition files and performs comprehensive validation:
  - YAML syntax validation
  - Ruleset structure validation (actions, operators, condition trees)
  - Data dictionary field validation (types, defaults, validation rules)

A file with a top-level 'rules' key is linted as a ruleset; a file with a
top-level 'fields' key is linted as a data dictionary.

Examples:
  # Lint single file
  meridian lint --file card-rules.yaml

  # Lint directory
  meridian lint --dir definitions/

  # JSON output for CI/CD
  meridian lint --dir definitions/ --format json`,
	RunE: lintDefinitions,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "definition file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of definition files")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

func lintDefinitions(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	var files []string

	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}

	if lintFlags.dir != "" {
		matches, err := filepath.Glob(filepath.Join(lintFlags.dir, "*.yaml"))
		if err != nil {
			return fmt.Errorf("failed to list definition files: %w", err)
		}
		ymlMatches, err := filepath.Glob(filepath.Join(lintFlags.dir, "*.yml"))
		if err != nil {
			return fmt.Errorf("failed to list definition files: %w", err)
		}
		files = append(files, matches...)
		files = append(files, ymlMatches...)
	}

	if len(files) == 0 {
		return fmt.Errorf("no definition files found")
	}

	results := make([]LintResult, 0, len(files))
	for _, file := range files {
		results = append(results, lintFile(file))
	}

	if lintFlags.format == "json" {
		return outputJSON(results)
	}
	return outputText(results)
}

// LintResult is the validation outcome for a single definition file.
type LintResult struct {
	File   string   `json:"file"`
	Kind   string   `json:"kind,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func lintFile(path string) LintResult {
	result := LintResult{File: path, Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("invalid YAML: %v", err))
		return result
	}

	_, hasRules := top["rules"]
	_, hasFields := top["fields"]
	switch {
	case hasRules && hasFields:
		result.Valid = false
		result.Errors = append(result.Errors, "file defines both 'rules' and 'fields'; split it into a ruleset and a dictionary")
		return result
	case hasRules:
		result.Kind = "ruleset"
		if _, err := rules.ParseRulesetBytes(data); err != nil {
			result.Valid = false
			var verr *rules.ValidationError
			if errors.As(err, &verr) {
				for _, msg := range verr.Errors {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", verr.Subject, msg))
				}
			} else {
				result.Errors = append(result.Errors, err.Error())
			}
		}
	case hasFields:
		result.Kind = "dictionary"
		dict, err := dictionary.ParseDictionaryFile(path)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
			return result
		}
		validator, err := dictionary.NewValidator(dict)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
			return result
		}
		// Compile CUSTOM expressions now so a broken CEL rule fails the
		// lint instead of the first transaction that hits it.
		if err := validator.Compile(); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
		}
	default:
		result.Valid = false
		result.Errors = append(result.Errors, "file defines neither 'rules' nor 'fields'")
	}

	return result
}

func outputText(results []LintResult) error {
	totalErrors := 0

	for _, result := range results {
		fmt.Printf("Validating %s...\n", result.File)

		if result.Valid {
			fmt.Printf("✓ Valid %s\n", result.Kind)
		}
		for _, msg := range result.Errors {
			fmt.Printf("✗ Error: %s\n", msg)
			totalErrors++
		}
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  %d file(s), %d error(s)\n", len(results), totalErrors)

	if totalErrors > 0 {
		return cli.NewCommandError("lint", fmt.Errorf("validation failed"))
	}
	return nil
}

func outputJSON(results []LintResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
