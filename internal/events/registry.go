package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// session lifecycle (host)
	"session.created":  {},
	"session.started":  {},
	"session.deleted":  {},
	"session.restored": {},
	"session.rejected": {},

	// node
	"node.entered": {},
	"node.jumped":  {},

	// interaction
	"interaction.triggered": {},
	"interaction.skipped":   {},
	"interaction.resumed":   {},

	// choice
	"choice.selected": {},

	// playback
	"playback.auto_advanced":   {},
	"playback.awaiting_choice": {},
	"playback.terminal":        {},

	// scenario catalog
	"scenario.loaded":        {},
	"scenario.rejected":      {},
	"scenario.dangling":      {},
	"scenario.media_missing": {},

	// operator
	"operator.jump": {},

	// player transport
	"transport.connected":    {},
	"transport.disconnected": {},
	"player.connected":       {},
	"player.disconnected":    {},
	"player.input":           {},

	// system
	"system.startup":         {},
	"system.startup_restore": {},
	"system.shutdown":        {},
	"system.error":           {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
