// Package main provides the emovec speech-emotion CLI and server.
//
// Usage:
//
//	emovec [flags] <command> [args]
//
// Commands:
//
//	serve   - Serve the emotion API over HTTP and gRPC
//	infer   - Detect the emotion in a WAV file
//	models  - Show the configured model artifacts
//
// Configuration:
//
//	The CLI reads config.yaml from the emovec config directory
//	(~/.config/emovec on Linux) unless --config is given.
package main

import (
	"fmt"
	"os"

	"github.com/ekisa-team/emovec/cmd/emovec/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
