package bridge

import (
	"errors"
	"reflect"
	"testing"
)

func TestTranslateButtonPresses(t *testing.T) {
	tests := []struct {
		action     string
		wantCmd    string
		wantParams map[string]any
	}{
		{"dpad_up", "navigate", map[string]any{"direction": "up"}},
		{"dpad_down", "navigate", map[string]any{"direction": "down"}},
		{"dpad_left", "navigate", map[string]any{"direction": "left"}},
		{"dpad_right", "navigate", map[string]any{"direction": "right"}},
		{"select", "navigate", map[string]any{"action": "select"}},
		{"home", "navigate", map[string]any{"action": "home"}},
		{"back", "navigate", map[string]any{"action": "back"}},
		{"menu", "navigate", map[string]any{"action": "menu"}},
		{"play", "media_play", nil},
		{"pause", "media_pause", nil},
		{"volume_up", "volume_up", nil},
		{"volume_down", "volume_down", nil},
		{"mute", "mute", nil},
		{"sleep", "turn_off", nil},
		{"wake", "turn_on", nil},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			cmd, params, err := translate(tt.action, []byte("PRESS"))
			if err != nil {
				t.Fatalf("translate(%q) error: %v", tt.action, err)
			}
			if cmd != tt.wantCmd {
				t.Errorf("command = %q, want %q", cmd, tt.wantCmd)
			}
			if !reflect.DeepEqual(params, tt.wantParams) {
				t.Errorf("params = %v, want %v", params, tt.wantParams)
			}
		})
	}
}

func TestTranslateSendTextLiteral(t *testing.T) {
	// send_text takes any payload verbatim, including things that look
	// like button presses or JSON.
	for _, payload := range []string{"hello world", "PRESS", `{"command":"x"}`, ""} {
		cmd, params, err := translate("send_text", []byte(payload))
		if err != nil {
			t.Fatalf("translate(send_text, %q) error: %v", payload, err)
		}
		if cmd != "send_text" {
			t.Errorf("command = %q", cmd)
		}
		if params["text"] != payload {
			t.Errorf("text = %v, want %q", params["text"], payload)
		}
	}
}

func TestTranslateJSONFallback(t *testing.T) {
	cmd, params, err := translate("dpad_up", []byte(`{"command":"launch_app","package":"com.netflix.ninja"}`))
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	if cmd != "launch_app" {
		t.Errorf("command = %q, want launch_app", cmd)
	}
	if params["package"] != "com.netflix.ninja" {
		t.Errorf("params = %v", params)
	}
	if _, ok := params["command"]; ok {
		t.Error("command field leaked into params")
	}
}

func TestTranslateJSONWithoutParams(t *testing.T) {
	cmd, params, err := translate("anything", []byte(`{"command":"media_play"}`))
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	if cmd != "media_play" || params != nil {
		t.Errorf("got (%q, %v), want (media_play, nil)", cmd, params)
	}
}

func TestTranslateRejectsUnknownAction(t *testing.T) {
	_, _, err := translate("self_destruct", []byte("PRESS"))
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("error = %v, want ErrUnknownAction", err)
	}
}

func TestTranslateRejectsBadPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "press"},
		{"json array", `[1,2,3]`},
		{"missing command", `{"direction":"up"}`},
		{"empty command", `{"command":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := translate("dpad_up", []byte(tt.payload))
			if !errors.Is(err, ErrBadPayload) {
				t.Errorf("error = %v, want ErrBadPayload", err)
			}
		})
	}
}
