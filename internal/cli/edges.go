package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// EdgesResult is the derived edge view of a scenario.
type EdgesResult struct {
	ID       string                 `json:"id,omitempty"`
	Edges    []scenario.Edge        `json:"edges"`
	Dangling []scenario.DanglingRef `json:"dangling,omitempty"`
}

// NewEdgesCommand creates the edges command.
func NewEdgesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "edges <scenario>",
		Short:         "List the edges derived from node choices and interaction options",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdges(rootOpts, args[0], cmd)
		},
	}
}

func runEdges(rootOpts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	loaded, err := LoadScenario(path)
	if err != nil {
		return failLoad(formatter, err)
	}
	sc := loaded.Scenario

	result := EdgesResult{ID: sc.ID, Edges: sc.Edges(), Dangling: sc.Dangling()}
	if result.Edges == nil {
		result.Edges = []scenario.Edge{}
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	dangling := make(map[string]bool, len(result.Dangling))
	for _, d := range result.Dangling {
		dangling[d.NodeID+"/"+d.ChoiceID] = true
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tCHOICE\tLABEL\tNOTES")
	for _, e := range result.Edges {
		var notes []string
		if e.InteractionID != "" {
			notes = append(notes, "interaction "+e.InteractionID)
		}
		if e.Conditional {
			notes = append(notes, "conditional")
		}
		if dangling[e.From+"/"+e.ID] {
			notes = append(notes, "dangling")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.From, e.To, e.ID, e.Label, strings.Join(notes, ", "))
	}
	return tw.Flush()
}
