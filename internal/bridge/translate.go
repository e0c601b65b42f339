package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned for a button subtopic the bridge does not map.
var ErrUnknownAction = errors.New("bridge: unknown button action")

// ErrBadPayload is returned when a payload is neither a button press nor a
// parseable JSON command.
var ErrBadPayload = errors.New("bridge: malformed command payload")

// pressPayload is what Home Assistant button entities publish.
const pressPayload = "PRESS"

// translate turns a command-topic message into a normalized dispatcher
// command.
//
// Three payload shapes are accepted:
//   - anything on the send_text subtopic is taken as literal text
//   - PRESS on a button subtopic maps through the button table
//   - a JSON object with a "command" field passes through, remaining fields
//     becoming parameters
//
// Parameters:
//   - action: The subtopic the message arrived on (e.g. "dpad_up")
//   - payload: The raw message payload
//
// Returns:
//   - command: Normalized command name for the dispatcher
//   - params: Command parameters (nil when the command takes none)
//   - error: ErrUnknownAction or ErrBadPayload on unmappable input
func translate(action string, payload []byte) (command string, params map[string]any, err error) {
	if action == "send_text" {
		return "send_text", map[string]any{"text": string(payload)}, nil
	}

	if string(payload) == pressPayload {
		return translatePress(action)
	}

	// Fall back to a full JSON command document.
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	command, ok := doc["command"].(string)
	if !ok || command == "" {
		return "", nil, fmt.Errorf("%w: missing command field", ErrBadPayload)
	}
	delete(doc, "command")
	if len(doc) == 0 {
		return command, nil, nil
	}
	return command, doc, nil
}

// translatePress maps a button subtopic onto a dispatcher command.
func translatePress(action string) (string, map[string]any, error) {
	switch {
	case strings.HasPrefix(action, "dpad_"):
		return "navigate", map[string]any{"direction": strings.TrimPrefix(action, "dpad_")}, nil

	case action == "select" || action == "home" || action == "back" || action == "menu":
		return "navigate", map[string]any{"action": action}, nil

	case action == "play" || action == "pause":
		return "media_" + action, nil, nil

	case action == "volume_up" || action == "volume_down" || action == "mute":
		return action, nil, nil

	case action == "sleep":
		return "turn_off", nil, nil

	case action == "wake":
		return "turn_on", nil, nil

	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
