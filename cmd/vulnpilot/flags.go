package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"
)

// parseFlags parses fs allowing flags after positional arguments, so that
// "scan a.go --watch" and "scan --watch a.go" mean the same thing.
func parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseRepoArg splits "owner/repo".
func parseRepoArg(arg string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.Trim(strings.TrimSpace(arg), "/"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("expected <owner>/<repo>, got %q", arg)
	}
	return owner, repo, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}
