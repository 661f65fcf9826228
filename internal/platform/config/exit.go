package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// Exitf reports a fatal command error on stderr and exits 1. An -h or -help
// request surfaces as flag.ErrHelp and exits 0 without a message, since the
// flag package has already printed usage.
func Exitf(format string, args ...any) {
	os.Exit(exitCode(os.Stderr, format, args...))
}

func exitCode(w io.Writer, format string, args ...any) int {
	for _, a := range args {
		if err, ok := a.(error); ok && errors.Is(err, flag.ErrHelp) {
			return 0
		}
	}
	fmt.Fprintf(w, format+"\n", args...)
	return 1
}
