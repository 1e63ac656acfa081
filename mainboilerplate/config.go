package mainboilerplate

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

// MustParseArgs requires that Parser be able to ParseArgs without error. It
// exits the process on any parse failure, printing usage where go-flags
// doesn't already do so on our behalf. This is a program's terminal error
// path for configuration errors: they are fatal at init and are never
// returned to a caller.
func MustParseArgs(parser *flags.Parser) []string {
	args, err := parser.ParseArgs(os.Args[1:])
	if err == nil {
		return args
	}

	flagErr, ok := err.(*flags.Error)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch flagErr.Type {
	case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
		// These indicate a problem in the struct passed to the parser, not
		// in the user's input. That's a developer error: panic loudly.
		panic(err)

	case flags.ErrHelp:
		if parser.Options&flags.PrintErrors == 0 {
			parser.WriteHelp(os.Stderr)
		}
		os.Exit(1)

	default:
		// go-flags has already printed a helpful message for other error
		// types; just exit non-zero.
		os.Exit(1)
	}
	panic("unreachable")
}
