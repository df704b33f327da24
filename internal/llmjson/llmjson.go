// Package llmjson decodes the JSON fragments reasoning backends answer
// with. Models wrap their output in prose or code fences, so decoding first
// extracts the balanced object before unmarshalling.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gridmind/gridmind/core"
)

// ExtractObject returns the first balanced JSON object in text, or the text
// unchanged when none is found.
func ExtractObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}

// Unmarshal extracts the first JSON object in text and decodes it into v.
func Unmarshal(text string, v any) error {
	return json.Unmarshal([]byte(ExtractObject(text)), v)
}

// ActionSpec is the wire schema for one agent action.
type ActionSpec struct {
	Kind    string  `json:"kind"`
	DX      int     `json:"dx,omitempty"`
	DY      int     `json:"dy,omitempty"`
	X       int     `json:"x,omitempty"`
	Y       int     `json:"y,omitempty"`
	Target  string  `json:"target,omitempty"`
	Text    string  `json:"text,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
}

// DecodeAction converts one spec into a core action.
func DecodeAction(spec ActionSpec) (core.Action, error) {
	switch spec.Kind {
	case "move":
		return core.MoveAction{DX: spec.DX, DY: spec.DY}, nil
	case "wait":
		return core.WaitAction{Duration: time.Duration(spec.Seconds * float64(time.Second))}, nil
	case "speak":
		return core.SpeakAction{Text: spec.Text}, nil
	case "travel_to":
		return core.TravelToAction{Dest: core.Position{X: spec.X, Y: spec.Y}}, nil
	case "pursue":
		return core.PursueAction{Target: spec.Target}, nil
	case "flee_from":
		return core.FleeFromAction{Threat: spec.Target}, nil
	case "say_to":
		return core.SayToAction{Target: spec.Target, Text: spec.Text}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", spec.Kind)
	}
}

// DecodeActions converts a spec list, failing on the first unknown kind.
func DecodeActions(specs []ActionSpec) ([]core.Action, error) {
	actions := make([]core.Action, 0, len(specs))
	for _, spec := range specs {
		a, err := DecodeAction(spec)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}
