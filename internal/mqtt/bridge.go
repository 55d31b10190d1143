package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AaronLay10/ReelEngine/internal/events"
	"github.com/AaronLay10/ReelEngine/internal/logger"
	"github.com/AaronLay10/ReelEngine/internal/playback"
)

// Transport is the subset of the broker client the bridge needs.
type Transport interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

// Applier drives a playback session with one input.
type Applier interface {
	Apply(ctx context.Context, sessionID string, in playback.Input) (playback.Frame, error)
}

// ErrJumpNotAllowed is returned for jump inputs arriving from players.
// Jumps are an operator action and only accepted over the HTTP API.
var ErrJumpNotAllowed = errors.New("jump is not accepted from players")

// ErrorMessage is published to a session's error topic when an input is rejected.
type ErrorMessage struct {
	Input       playback.Input `json:"input"`
	Error       string         `json:"error"`
	Recoverable bool           `json:"recoverable"`
}

// Bridge connects kiosk players to playback sessions. Frames go out on
// <prefix>/sessions/<id>/frame; inputs come in on <prefix>/sessions/<id>/input.
type Bridge struct {
	transport Transport
	sessions  Applier
	prefix    string
	monitor   *Monitor
	log       *logger.Logger
	ctx       context.Context
}

// NewBridge creates a bridge. A nil monitor disables presence tracking.
func NewBridge(t Transport, sessions Applier, prefix string, monitor *Monitor, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.Nop()
	}
	return &Bridge{
		transport: t,
		sessions:  sessions,
		prefix:    strings.TrimSuffix(prefix, "/"),
		monitor:   monitor,
		log:       log,
		ctx:       context.Background(),
	}
}

// InputTopic is the wildcard topic players publish inputs on.
func (b *Bridge) InputTopic() string {
	return b.prefix + "/sessions/+/input"
}

// FrameTopic returns the topic frames for sessionID are published on.
func (b *Bridge) FrameTopic(sessionID string) string {
	return b.prefix + "/sessions/" + sessionID + "/frame"
}

// ErrorTopic returns the topic rejected inputs for sessionID are reported on.
func (b *Bridge) ErrorTopic(sessionID string) string {
	return b.prefix + "/sessions/" + sessionID + "/error"
}

// Start subscribes to player inputs. ctx is passed to every Apply call.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx
	if err := b.transport.Subscribe(b.InputTopic(), b.handleInput); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.InputTopic(), err)
	}
	b.log.Info("mqtt bridge subscribed", "topic", b.InputTopic())
	return nil
}

// PublishFrame sends f to the session's frame topic. It matches
// sessions.FrameSink so the manager can call it after every accepted input.
func (b *Bridge) PublishFrame(sessionID string, f playback.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		b.log.Error("failed to encode frame", "session_id", sessionID, "error", err)
		return
	}
	if err := b.transport.Publish(b.FrameTopic(sessionID), data); err != nil {
		b.log.Warn("failed to publish frame", "session_id", sessionID, "error", err)
	}
}

// SessionFromTopic extracts the session id from an input topic.
func SessionFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, strings.TrimSuffix(prefix, "/")+"/sessions/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/input")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (b *Bridge) handleInput(topic string, payload []byte) {
	id, ok := SessionFromTopic(b.prefix, topic)
	if !ok {
		b.log.Debug("ignoring message on unexpected topic", "topic", topic)
		return
	}
	if b.monitor != nil {
		b.monitor.Seen(id)
	}

	var in playback.Input
	if err := json.Unmarshal(payload, &in); err != nil {
		b.reject(id, in, fmt.Errorf("decode input: %w", err))
		return
	}
	if in.Kind != playback.InputTime {
		events.Emit("info", "player.input", "", map[string]interface{}{
			"session_id": id,
			"type":       string(in.Kind),
			"choice_id":  in.ChoiceID,
		})
	}
	if in.Kind == playback.InputJump {
		b.reject(id, in, ErrJumpNotAllowed)
		return
	}

	if _, err := b.sessions.Apply(b.ctx, id, in); err != nil {
		b.reject(id, in, err)
	}
}

func (b *Bridge) reject(sessionID string, in playback.Input, err error) {
	msg := ErrorMessage{
		Input:       in,
		Error:       err.Error(),
		Recoverable: playback.IsRecoverable(err),
	}
	data, _ := json.Marshal(msg)
	if perr := b.transport.Publish(b.ErrorTopic(sessionID), data); perr != nil {
		b.log.Warn("failed to publish input error", "session_id", sessionID, "error", perr)
	}
}
