// Package trace is the runtime-facing half of TURTLES: the entry/exit
// intake API a host language's execution hooks call into, and the option
// surface that turns tracing on and configures the persistence pipeline
// beneath it.
package trace

import (
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/flightaware/turtles/store"
)

// namespacePrefix is the framework's own fully-qualified name prefix. The
// trace re-entry guard skips any caller whose qualified name starts with
// it, so instrumenting TURTLES' own recorder/finalizer calls can never
// recurse into themselves.
const namespacePrefix = "turtles::"

// Options is the parsed content of a `+TURTLES ... -TURTLES` bracketed
// option block. Field tags follow the same go-flags convention
// mainboilerplate uses for the rest of the CLI surface.
type Options struct {
	Enabled        bool   `long:"enabled" description:"enable call tracing"`
	CommitMode     string `long:"commitMode" default:"staged" choice:"staged" choice:"direct" description:"persistence commit mode"`
	IntervalMillis int    `long:"intervalMillis" default:"30000" description:"finalizer tick interval, in milliseconds"`
	DBPath         string `long:"dbPath" default:"./" description:"directory for the durable store file"`
	DBPrefix       string `long:"dbPrefix" default:"turtles" description:"durable store filename stem"`
	ScheduleMode   string `long:"scheduleMode" default:"mt" choice:"mt" choice:"ev" description:"recorder scheduling: separate thread or cooperative task"`
	Debug          bool   `long:"debug" description:"emit trace diagnostics"`
}

const (
	openMarker  = "+TURTLES"
	closeMarker = "-TURTLES"
)

// ExtractOptionBlocks scans argv for `+TURTLES ... -TURTLES` bracketed
// blocks, concatenates the inner tokens of every block found, and returns
// the residual argv with all bracketed content — markers included —
// removed.
//
// For example, `"-i x +TURTLES -enabled -TURTLES -o y"` yields residual
// `"-i x -o y"` and extracted opts `"-enabled"`.
func ExtractOptionBlocks(argv []string) (residual []string, extracted []string) {
	inBlock := false
	for _, tok := range argv {
		switch {
		case !inBlock && tok == openMarker:
			inBlock = true
		case inBlock && tok == closeMarker:
			inBlock = false
		case inBlock:
			extracted = append(extracted, tok)
		default:
			residual = append(residual, tok)
		}
	}
	return residual, extracted
}

// ParseOptions parses an extracted turtles option token list (as returned
// by ExtractOptionBlocks) into Options. An unrecognized option, or an
// invalid commitMode/scheduleMode value, is a configuration error and is
// fatal at startup — ParseOptions itself just returns the error; callers
// decide how to fail.
func ParseOptions(tokens []string) (Options, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.None)
	if _, err := parser.ParseArgs(normalizeLongOpts(tokens)); err != nil {
		return Options{}, errors.Wrap(err, "parsing turtles options")
	}
	return opts, nil
}

// normalizeLongOpts rewrites the host's single-dash long-option convention
// (`-enabled`, `-commitMode staged`) onto go-flags' double-dash convention
// (`--enabled`, `--commitMode staged`) before parsing. A single-character
// token like `-o` is left alone since it could only ever be a short option.
func normalizeLongOpts(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if strings.HasPrefix(tok, "-") && !strings.HasPrefix(tok, "--") && len(tok) > 2 {
			out[i] = "-" + tok
		} else {
			out[i] = tok
		}
	}
	return out
}

// StoreConfig maps the parsed runtime options onto a store.Config for the
// given host process id.
func (o Options) StoreConfig(pid int) store.Config {
	return store.Config{
		Mode:     store.CommitMode(o.CommitMode),
		DBPath:   o.DBPath,
		DBPrefix: o.DBPrefix,
		PID:      pid,
	}
}

// IsFrameworkInternal reports whether qualifiedName belongs to TURTLES
// itself, per the trace re-entry guard.
func IsFrameworkInternal(qualifiedName string) bool {
	return strings.HasPrefix(qualifiedName, namespacePrefix)
}
