package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sekachev/whisper-api/internal/cli"
	"github.com/spf13/cobra"
)

// usageErrorMarkers identify cobra's own argument and flag errors, for
// which a --help hint is worth printing. Runtime failures get no hint.
var usageErrorMarkers = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"accepts ",
	"requires at least",
	"requires at most",
	"requires between",
	"required flag",
	"missing required",
}

func main() {
	root := cli.NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if shouldPrintUsageHint(err) {
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", helpHintTarget(root, os.Args[1:]))
		}
		os.Exit(1)
	}
}

func shouldPrintUsageHint(err error) bool {
	if err == nil {
		return false
	}

	message := strings.ToLower(err.Error())
	for _, marker := range usageErrorMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

// helpHintTarget picks the most specific command path the hint can point
// at: the invoked subcommand when it parsed, the root otherwise.
func helpHintTarget(root *cobra.Command, args []string) string {
	if root == nil {
		return "whisperapi"
	}

	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return root.CommandPath()
	}

	if found, _, err := root.Find(args); err == nil && found != nil {
		return found.CommandPath()
	}
	return root.CommandPath()
}
