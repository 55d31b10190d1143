package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// UnpackResult describes an extracted package.
type UnpackResult struct {
	Dir          string   `json:"dir"`
	ScenarioID   string   `json:"scenario_id,omitempty"`
	Media        []string `json:"media"`
	MissingMedia []string `json:"missing_media,omitempty"`
}

type unpackOptions struct {
	out string
}

// NewUnpackCommand creates the unpack command.
func NewUnpackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &unpackOptions{}

	cmd := &cobra.Command{
		Use:           "unpack <package>",
		Short:         "Extract a scenario package",
		Long:          "Extract scenario.json and the media/ folder of a package. The scenario is validated while reading.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnpack(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "output", "o", "", "destination directory (default: package name)")

	return cmd
}

func runUnpack(rootOpts *RootOptions, opts *unpackOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	if !IsPackage(path) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("%s is not a package (.reel or .zip)", path), nil)
	}
	dir := opts.out
	if dir == "" {
		dir = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if _, err := LoadScenario(path); err != nil {
		return failLoad(formatter, err)
	}
	pkg, err := scenario.ExtractPackage(path, dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Extracted %s to %s", path, dir)

	result := UnpackResult{
		Dir:          dir,
		ScenarioID:   pkg.Scenario.ID,
		Media:        pkg.Media,
		MissingMedia: pkg.MissingMedia(),
	}
	if result.Media == nil {
		result.Media = []string{}
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Extracted %s to %s (%d media file(s))\n", path, dir, len(result.Media))
	for _, m := range result.MissingMedia {
		fmt.Fprintf(w, "  warning: media %s is not in the package\n", m)
	}
	return nil
}
