package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// PackResult describes a written package.
type PackResult struct {
	Output       string   `json:"output"`
	ScenarioID   string   `json:"scenario_id,omitempty"`
	Media        []string `json:"media"`
	MissingMedia []string `json:"missing_media,omitempty"`
}

// NewPackCommand creates the pack command.
func NewPackCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pack <scenario> [media-dir] <out.reel>",
		Short: "Export a scenario and its media as a package",
		Long: `Export a scenario document and every file under media-dir into a zip
package holding scenario.json and a media/ folder. Without media-dir only the
document is exported.`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaDir, out := "", args[1]
			if len(args) == 3 {
				mediaDir, out = args[1], args[2]
			}
			return runPack(rootOpts, args[0], mediaDir, out, cmd)
		},
	}
}

func runPack(rootOpts *RootOptions, path, mediaDir, out string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	loaded, err := LoadScenario(path)
	if err != nil {
		return failLoad(formatter, err)
	}
	if mediaDir != "" {
		if info, err := os.Stat(mediaDir); err != nil || !info.IsDir() {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("media directory not found: %s", mediaDir), nil)
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("failed to create %s: %v", out, err), nil)
	}
	if err := scenario.WritePackage(f, loaded.Scenario, mediaDir); err != nil {
		f.Close()
		os.Remove(out)
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if err := f.Close(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	pkg, err := scenario.ReadPackage(out)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("written package does not read back: %v", err), nil)
	}
	formatter.VerboseLog("Wrote %s", out)

	result := PackResult{
		Output:       out,
		ScenarioID:   loaded.Scenario.ID,
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
	fmt.Fprintf(w, "✓ Wrote %s (%d media file(s))\n", out, len(result.Media))
	for _, m := range result.MissingMedia {
		fmt.Fprintf(w, "  warning: media %s is not in the package\n", m)
	}
	return nil
}
