package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool                   `json:"valid"`
	ID           string                 `json:"id,omitempty"`
	Title        string                 `json:"title,omitempty"`
	Nodes        int                    `json:"nodes"`
	Edges        int                    `json:"edges"`
	EntryNode    string                 `json:"entry_node,omitempty"`
	Terminals    []string               `json:"terminals,omitempty"`
	Dangling     []scenario.DanglingRef `json:"dangling,omitempty"`
	MissingMedia []string               `json:"missing_media,omitempty"`
	Issues       []scenario.Issue       `json:"issues,omitempty"`
}

type validateOptions struct {
	strict bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Validate a scenario document or package",
		Long: `Validate a scenario document (.json, .yaml) or exported package (.reel, .zip).

Structural problems and an ambiguous entry node fail validation. Choices whose
targets do not resolve, and media missing from a package, are reported as
warnings unless --strict is set.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "treat dangling targets and missing media as errors")

	return cmd
}

func runValidate(rootOpts *RootOptions, opts *validateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	loaded, err := LoadScenario(path)
	if err != nil {
		var loadErr *LoadError
		var ve *scenario.ValidationError
		if errors.As(err, &loadErr) && errors.As(loadErr.Err, &ve) {
			return outputValidationFailure(formatter, ValidationResult{Issues: ve.Issues}, loadErr.Code, ve.Error())
		}
		return failLoad(formatter, err)
	}
	sc := loaded.Scenario
	formatter.VerboseLog("Loaded %s (%d nodes)", path, len(sc.Nodes))

	result := ValidationResult{
		Valid:     true,
		ID:        sc.ID,
		Title:     sc.Title,
		Nodes:     len(sc.Nodes),
		Edges:     len(sc.Edges()),
		Terminals: sc.Terminals(),
		Dangling:  sc.Dangling(),
	}
	if loaded.Package != nil {
		result.MissingMedia = loaded.Package.MissingMedia()
	}

	entry, err := scenario.ResolveEntryNode(sc)
	if err != nil {
		result.Valid = false
		return outputValidationFailure(formatter, result, ErrCodeAmbiguousEntry, err.Error())
	}
	result.EntryNode = entry

	if opts.strict && (len(result.Dangling) > 0 || len(result.MissingMedia) > 0) {
		result.Valid = false
		return outputValidationFailure(formatter, result, ErrCodeInvalidScenario,
			fmt.Sprintf("%d dangling target(s), %d missing media file(s)", len(result.Dangling), len(result.MissingMedia)))
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s is valid (%d nodes, %d edges, entry %s)\n", displayName(sc), result.Nodes, result.Edges, entry)
	for _, d := range result.Dangling {
		fmt.Fprintf(w, "  warning: %s -> %s does not resolve (node %s)\n", d.ChoiceID, d.TargetID, d.NodeID)
	}
	for _, m := range result.MissingMedia {
		fmt.Fprintf(w, "  warning: media %s is not in the package\n", m)
	}
	return nil
}

func outputValidationFailure(formatter *OutputFormatter, result ValidationResult, code, message string) error {
	result.Valid = false
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed: %s", message))

	if formatter.IsJSON() {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: code, Message: message},
		}); err != nil {
			return err
		}
		return exitErr
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	if len(result.Issues) == 0 {
		fmt.Fprintf(w, "  %s: %s\n", code, message)
	}
	for _, is := range result.Issues {
		fmt.Fprintf(w, "  %s: %s\n", code, is.String())
	}
	for _, d := range result.Dangling {
		fmt.Fprintf(w, "  dangling: %s -> %s (node %s)\n", d.ChoiceID, d.TargetID, d.NodeID)
	}
	for _, m := range result.MissingMedia {
		fmt.Fprintf(w, "  missing media: %s\n", m)
	}
	return exitErr
}

func displayName(sc *scenario.Scenario) string {
	if sc.Title != "" && sc.ID != "" {
		return fmt.Sprintf("%s (%s)", sc.ID, sc.Title)
	}
	if sc.ID != "" {
		return sc.ID
	}
	return "scenario"
}
