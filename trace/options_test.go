package trace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExtractOptionBlocksSplitsSingleBlock checks residual/extracted
// splitting around a single bracketed option block.
func TestExtractOptionBlocksSplitsSingleBlock(t *testing.T) {
	argv := []string{"-i", "x", "+TURTLES", "-enabled", "-TURTLES", "-o", "y"}
	residual, extracted := ExtractOptionBlocks(argv)

	require.Equal(t, []string{"-i", "x", "-o", "y"}, residual)
	require.Equal(t, []string{"-enabled"}, extracted)
}

func TestExtractOptionBlocksConcatenatesMultipleBlocks(t *testing.T) {
	argv := []string{"+TURTLES", "-enabled", "-TURTLES", "run", "+TURTLES", "-debug", "-TURTLES"}
	residual, extracted := ExtractOptionBlocks(argv)

	require.Equal(t, []string{"run"}, residual)
	require.Equal(t, []string{"-enabled", "-debug"}, extracted)
}

func TestExtractOptionBlocksNoBlocks(t *testing.T) {
	argv := []string{"-i", "x", "-o", "y"}
	residual, extracted := ExtractOptionBlocks(argv)

	require.Equal(t, argv, residual)
	require.Empty(t, extracted)
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := ParseOptions([]string{"-enabled"})
	require.NoError(t, err)
	require.True(t, opts.Enabled)
	require.Equal(t, "staged", opts.CommitMode)
	require.Equal(t, 30000, opts.IntervalMillis)
	require.Equal(t, "./", opts.DBPath)
	require.Equal(t, "turtles", opts.DBPrefix)
	require.Equal(t, "mt", opts.ScheduleMode)
	require.False(t, opts.Debug)
}

func TestParseOptionsRejectsInvalidCommitMode(t *testing.T) {
	_, err := ParseOptions([]string{"-enabled", "-commitMode", "bogus"})
	require.Error(t, err)
}

func TestParseOptionsRejectsUnknownOption(t *testing.T) {
	_, err := ParseOptions([]string{"-frobnicate"})
	require.Error(t, err)
}

func TestIsFrameworkInternal(t *testing.T) {
	require.True(t, IsFrameworkInternal("turtles::store::Recorder::AddCall"))
	require.False(t, IsFrameworkInternal("myapp::Widget::process"))
}
