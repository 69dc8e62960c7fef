package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineTextBlock(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"hello there"}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "hello there", out)
}

func TestLineToolUseRead(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/a.go","offset":1,"limit":20}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "-> Read(/a.go 1:20)", out)
}

func TestLineToolUseReadWholeFile(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/a.go"}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "-> Read(/a.go)", out)
}

func TestLineToolUseReadOffsetOnly(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/a.go","offset":40}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "-> Read(/a.go 40)", out)
	require.NotContains(t, out, "<nil>")
}

func TestLineToolUseReadLimitOnly(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/a.go","limit":20}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "-> Read(/a.go :20)", out)
}

func TestLineToolUseEdit(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Edit","input":{"file_path":"/a.go"}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "-> Edit(/a.go)", out)
}

func TestLineToolUseBashTruncates(t *testing.T) {
	cmd := strings.Repeat("x", 150)
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"` + cmd + `"}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.True(t, strings.HasSuffix(out, "...)"))
	require.NotContains(t, out, strings.Repeat("x", 150))
}

func TestLineToolUseGlob(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Glob","input":{"pattern":"**/*.go"}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "-> Glob(**/*.go)", out)
}

func TestLineToolUseTodoWrite(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"TodoWrite","input":{"todos":[{},{},{}]}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "-> TodoWrite(3 items)", out)
}

func TestLineToolUseUnknownFallback(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Mystery","input":{"foo":"bar baz"}}]}}`
	out, ok := Line(line)
	require.True(t, ok)
	require.Equal(t, "-> Mystery(bar baz)", out)
}

func TestLineResult(t *testing.T) {
	out, ok := Line(`{"type":"result","result":"done"}`)
	require.True(t, ok)
	require.Equal(t, "done", out)
}

func TestLineResultEmptyYieldsNoOutput(t *testing.T) {
	_, ok := Line(`{"type":"result","result":""}`)
	require.False(t, ok)
}

func TestLineUnknownTypeYieldsNoOutput(t *testing.T) {
	_, ok := Line(`{"type":"system","foo":"bar"}`)
	require.False(t, ok)
}

func TestLineMalformedJSONYieldsNoOutput(t *testing.T) {
	_, ok := Line(`{not json`)
	require.False(t, ok)
}

func TestLineNonJSONYieldsNoOutput(t *testing.T) {
	_, ok := Line("plain stdout noise")
	require.False(t, ok)
}

func TestLineEmptyContentYieldsNoOutput(t *testing.T) {
	_, ok := Line(`{"type":"assistant","message":{"content":[]}}`)
	require.False(t, ok)
}
