// Package main is the entry point for the sonido-voz CLI.
//
// Usage:
//
//	sonido-voz [flags] <command> [args]
//
// Commands:
//
//	predict           - Predict speaker gender for audio files
//	features          - Print the acoustic feature vector of an audio file
//	predict-features  - Predict from 20 precomputed feature values
//	bundle            - Show the loaded artifact bundle
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-voz/cmd/sonido-voz/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
