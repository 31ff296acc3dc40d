package main

import (
	"fmt"
	"os"

	"github.com/certforge/certstore/cmd/certstore/commands"
	"github.com/certforge/certstore/internal/buildinfo"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version string
	commit  string
	date    string
)

func main() {
	if err := commands.Execute(buildinfo.Resolve(version, commit, date)); err != nil {
		fmt.Fprintf(os.Stderr, "certstore: %v\n", err)
		os.Exit(1)
	}
}
