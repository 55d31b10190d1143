package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/ReelEngine/internal/playback"
	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

type playOptions struct {
	script    string
	inputs    string
	timeStep  float64
	startNode string
	tolerance float64
}

// PlayStep is one applied input and the frame it produced.
type PlayStep struct {
	Command string         `json:"command,omitempty"`
	Input   playback.Input `json:"input"`
	Frame   playback.Frame `json:"frame"`
	Error   string         `json:"error,omitempty"`
}

// PlayResult is the outcome of a play-through.
type PlayResult struct {
	ScenarioID string         `json:"scenario_id,omitempty"`
	Start      playback.Frame `json:"start"`
	Steps      []PlayStep     `json:"steps"`
	Final      playback.State `json:"final"`
	Terminal   bool           `json:"terminal"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &playOptions{}

	cmd := &cobra.Command{
		Use:   "play <scenario>",
		Short: "Play through a scenario without media",
		Long: `Play through a scenario by issuing playback commands.

Commands are read from stdin, or from --script. One command per line:

  tick               advance the playhead by --time-step (ends the video at its duration hint)
  t <seconds>        report an absolute playhead position
  end                report that the video ended
  choose <id|n>      take a choice by id or by its 1-based position
  <n>                shorthand for choose <n>
  jump <node>        jump to a node
  state              print the session state
  quit               stop

An empty line typed on stdin is a tick.

With --inputs, a recorded JSON array of inputs is applied instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.script, "script", "", "read commands from file instead of stdin")
	cmd.Flags().StringVar(&opts.inputs, "inputs", "", "apply a recorded JSON array of inputs")
	cmd.Flags().Float64Var(&opts.timeStep, "time-step", 1.0, "seconds advanced by each tick")
	cmd.Flags().StringVar(&opts.startNode, "start", "", "start at this node instead of the entry node")
	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", playback.DefaultTolerance, "interaction trigger window in seconds")

	return cmd
}

// player drives one session from CLI commands.
type player struct {
	session   *playback.Session
	formatter *OutputFormatter
	timeStep  float64
	strict    bool
	result    *PlayResult
}

func runPlay(rootOpts *RootOptions, opts *playOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	if opts.script != "" && opts.inputs != "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--script and --inputs are mutually exclusive", nil)
	}
	if opts.timeStep <= 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--time-step must be positive", nil)
	}

	loaded, err := LoadScenario(path)
	if err != nil {
		return failLoad(formatter, err)
	}
	sc := loaded.Scenario

	sessionOpts := []playback.Option{playback.WithTolerance(opts.tolerance)}
	if opts.startNode != "" {
		sessionOpts = append(sessionOpts, playback.WithStartNode(opts.startNode))
	}
	if formatter.Verbose {
		sessionOpts = append(sessionOpts, playback.WithObserver(func(name string, fields map[string]interface{}) {
			formatter.VerboseLog("· %s %s", name, formatFields(fields))
		}))
	}

	session, err := playback.Start(sc, sessionOpts...)
	if err != nil {
		code := ErrCodePlayback
		if errors.Is(err, scenario.ErrAmbiguousEntry) {
			code = ErrCodeAmbiguousEntry
		}
		return formatter.Fail(ExitFailure, code, err.Error(), nil)
	}

	p := &player{
		session:   session,
		formatter: formatter,
		timeStep:  opts.timeStep,
		result:    &PlayResult{ScenarioID: sc.ID, Start: session.Frame(), Steps: []PlayStep{}},
	}
	p.printFrame(p.result.Start)

	switch {
	case opts.inputs != "":
		p.strict = true
		err = p.applyRecorded(opts.inputs)
	case opts.script != "":
		p.strict = true
		var f *os.File
		f, err = os.Open(opts.script)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("script not found: %s", opts.script), nil)
		}
		defer f.Close()
		err = p.runCommands(f)
	default:
		err = p.runCommands(cmd.InOrStdin())
	}

	p.result.Final = session.State()
	p.result.Terminal = session.Phase() == playback.PhaseTerminal

	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if formatter.IsJSON() {
				_ = formatter.Error(ErrCodePlayback, err.Error(), p.result)
			}
			return err
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	if formatter.IsJSON() {
		return formatter.Success(p.result)
	}
	if !p.result.Terminal {
		fmt.Fprintf(formatter.Writer, "stopped at %s (%s)\n", session.CurrentNode().ID, session.Phase())
	}
	return nil
}

func (p *player) applyRecorded(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("inputs not found: %s", path))
	}
	var inputs []playback.Input
	if err := json.Unmarshal(data, &inputs); err != nil {
		return WrapExitError(ExitCommandError, "failed to parse inputs", err)
	}
	for _, in := range inputs {
		if err := p.apply("", in); err != nil {
			return err
		}
	}
	return nil
}

func (p *player) runCommands(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if p.session.Phase() == playback.PhaseTerminal {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(text, "#") || (text == "" && p.strict) {
			continue
		}

		done, err := p.command(text)
		if err != nil {
			if p.strict {
				return WrapExitError(ExitFailure, fmt.Sprintf("line %d", line), err)
			}
			fmt.Fprintf(p.formatter.GetErrWriter(), "? %v\n", err)
			continue
		}
		if done {
			break
		}
	}
	return scanner.Err()
}

// command executes one command line. It reports done when the user quits.
func (p *player) command(text string) (bool, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false, p.tick(text)
	}

	verb, args := strings.ToLower(fields[0]), fields[1:]
	switch verb {
	case "q", "quit", "exit":
		return true, nil
	case "tick":
		return false, p.tick(text)
	case "t", "time":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: t <seconds>")
		}
		elapsed, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return false, fmt.Errorf("invalid time %q", args[0])
		}
		return false, p.apply(text, playback.Input{Kind: playback.InputTime, Elapsed: elapsed})
	case "end", "ended":
		return false, p.apply(text, playback.Input{Kind: playback.InputEnded})
	case "choose", "c":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: choose <id|n>")
		}
		return false, p.choose(text, args[0])
	case "jump":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: jump <node>")
		}
		return false, p.apply(text, playback.Input{Kind: playback.InputJump, NodeID: args[0]})
	case "state":
		p.printState()
		return false, nil
	default:
		if _, err := strconv.Atoi(verb); err == nil && len(args) == 0 {
			return false, p.choose(text, verb)
		}
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

// tick advances the playhead by one time step. Reaching the node's duration
// hint also ends the video.
func (p *player) tick(text string) error {
	node := p.session.CurrentNode()
	if p.session.Phase() != playback.PhaseAtNode || !node.IsVideo() {
		return fmt.Errorf("nothing is playing (%s)", p.session.Phase())
	}

	next := p.session.Elapsed() + p.timeStep
	if node.DurationHint > 0 && next > node.DurationHint {
		next = node.DurationHint
	}
	if err := p.apply(text, playback.Input{Kind: playback.InputTime, Elapsed: next}); err != nil {
		return err
	}
	if node.DurationHint > 0 && next >= node.DurationHint && p.session.Phase() == playback.PhaseAtNode {
		return p.apply(text, playback.Input{Kind: playback.InputEnded})
	}
	return nil
}

func (p *player) choose(text, ref string) error {
	id := ref
	if n, err := strconv.Atoi(ref); err == nil {
		choices := p.session.CurrentChoices()
		if n < 1 || n > len(choices) {
			return fmt.Errorf("no choice %d (%d offered)", n, len(choices))
		}
		id = choices[n-1].ID
	}
	return p.apply(text, playback.Input{Kind: playback.InputChoice, ChoiceID: id})
}

// apply runs one input. Recoverable playback errors are reported and leave
// the session unchanged; anything else stops the play-through. A malformed
// input in a script or inputs file is a failure too.
func (p *player) apply(text string, in playback.Input) error {
	before := p.session.Phase()

	f, err := p.session.Apply(in)
	step := PlayStep{Command: text, Input: in, Frame: f}
	if err != nil {
		step.Error = err.Error()
	}

	quietTime := err == nil && in.Kind == playback.InputTime && p.session.Phase() == before
	if !quietTime {
		p.result.Steps = append(p.result.Steps, step)
	}

	if err != nil {
		malformed := p.strict && errors.Is(err, playback.ErrInvalidInput)
		if playback.IsRecoverable(err) && !malformed {
			if !p.formatter.IsJSON() {
				fmt.Fprintf(p.formatter.Writer, "! %v\n", err)
			}
			return nil
		}
		return WrapExitError(ExitFailure, "playback failed", err)
	}
	if !quietTime {
		p.printFrame(f)
	}
	return nil
}

func (p *player) printFrame(f playback.Frame) {
	if p.formatter.IsJSON() {
		return
	}
	w := p.formatter.Writer
	node, _ := p.session.Scenario().FindNode(f.NodeID)

	switch f.Phase {
	case playback.PhaseAtNode:
		prefix := "▶"
		if f.AutoAdvanced {
			prefix = "↪"
		}
		if f.Resume {
			fmt.Fprintf(w, "%s %s resumes at %.2fs\n", prefix, f.NodeID, p.session.Elapsed())
			return
		}
		fmt.Fprintf(w, "%s %s%s%s\n", prefix, f.NodeID, nodeTitle(node), mediaSuffix(f))
	case playback.PhaseAwaitingInteraction:
		title := f.InteractionID
		if node != nil {
			for _, it := range node.Interactions {
				if it.ID == f.InteractionID && it.Title != "" {
					title = it.Title
				}
			}
		}
		fmt.Fprintf(w, "⏸ %s at %.2fs: %s\n", f.NodeID, p.session.Elapsed(), title)
		printChoices(w, f.Choices)
	case playback.PhaseAwaitingEndChoice:
		fmt.Fprintf(w, "? %s%s\n", f.NodeID, nodeTitle(node))
		printChoices(w, f.Choices)
	case playback.PhaseTerminal:
		fmt.Fprintf(w, "■ %s%s (end)\n", f.NodeID, nodeTitle(node))
	}
}

func (p *player) printState() {
	st := p.session.State()
	if p.formatter.IsJSON() {
		_ = json.NewEncoder(p.formatter.GetErrWriter()).Encode(st)
		return
	}
	w := p.formatter.Writer
	fmt.Fprintf(w, "node %s, phase %s, elapsed %.2fs\n", st.CurrentNodeID, st.Phase, p.session.Elapsed())
	fmt.Fprintf(w, "history %v\n", st.History)
	names := make([]string, 0, len(st.Variables))
	for k := range st.Variables {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "  %s = %s\n", k, st.Variables[k].String())
	}
}

func printChoices(w io.Writer, choices []scenario.Choice) {
	for i, c := range choices {
		label := c.Label
		if label == "" {
			label = c.ID
		}
		fmt.Fprintf(w, "  %d) %s [%s]\n", i+1, label, c.ID)
	}
}

func nodeTitle(n *scenario.Node) string {
	if n == nil || n.Title == "" {
		return ""
	}
	return " " + strconv.Quote(n.Title)
}

func mediaSuffix(f playback.Frame) string {
	var parts []string
	if f.MediaRef != "" {
		parts = append(parts, f.MediaRef)
	}
	if f.Transition != nil && f.Transition.Type != scenario.TransitionCut {
		parts = append(parts, fmt.Sprintf("%s %.1fs", f.Transition.Type, f.Transition.Duration))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
