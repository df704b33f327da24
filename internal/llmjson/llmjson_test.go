package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmind/gridmind/core"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"prose wrapped", "Sure, here you go:\n{\"a\":1}\nHope that helps!", `{"a":1}`},
		{"nested", `{"a":{"b":2}} trailing`, `{"a":{"b":2}}`},
		{"braces in strings", `{"a":"}{"} rest`, `{"a":"}{"}`},
		{"no object", "no json here", "no json here"},
		{"unterminated", `{"a":1`, `{"a":1`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractObject(tc.in))
		})
	}
}

func TestDecodeActions(t *testing.T) {
	actions, err := DecodeActions([]ActionSpec{
		{Kind: "travel_to", X: 3, Y: 4},
		{Kind: "say_to", Target: "bob", Text: "hi"},
		{Kind: "wait", Seconds: 1.5},
	})
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, core.TravelToAction{Dest: core.Position{X: 3, Y: 4}}, actions[0])
	assert.Equal(t, core.SayToAction{Target: "bob", Text: "hi"}, actions[1])
}

func TestDecodeActionUnknownKind(t *testing.T) {
	_, err := DecodeActions([]ActionSpec{{Kind: "teleport"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}
