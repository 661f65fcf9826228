// Package main issues arena bearer tokens and signing secrets.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/monarena/internal/platform/config"
	"github.com/louisbranch/monarena/internal/tools/arenatoken"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	cfg, err := arenatoken.ParseConfig(fs, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := arenatoken.Run(cfg, os.Stdout, nil, nil); err != nil {
		config.Exitf("arena token: %v", err)
	}
}
