package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Process streams; tests swap them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

// globalOptions are the flags accepted before or after any command.
type globalOptions struct {
	configPath string
	apiURL     string
	noColor    bool
	trace      bool
	verbose    bool
	args       []string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(raw []string) int {
	opts, err := parseGlobalOptions(raw)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	if handled, code := dispatchSubcommand(opts); handled {
		return code
	}
	printHelp()
	return exitFailure
}

func dispatchSubcommand(opts *globalOptions) (bool, int) {
	args := opts.args
	if len(args) == 0 {
		return false, 0
	}
	rest := args[1:]
	switch args[0] {
	case "--version", "-v", "version":
		printVersion()
		return true, exitOK
	case "--help", "-h", "help":
		printHelp()
		return true, exitOK
	case "login":
		return true, runCommand(opts, runLoginCommand, rest)
	case "logout":
		return true, runCommand(opts, runLogoutCommand, rest)
	case "whoami":
		return true, runCommand(opts, runWhoamiCommand, rest)
	case "callback":
		return true, runCommand(opts, runCallbackCommand, rest)
	case "repos":
		return true, runCommand(opts, runReposCommand, rest)
	case "repo-analyze":
		return true, runCommand(opts, runRepoAnalyzeCommand, rest)
	case "chat":
		return true, runCommand(opts, runChatCommand, rest)
	case "explain":
		return true, runCommand(opts, runExplainCommand, rest)
	case "remediate":
		return true, runCommand(opts, runRemediateCommand, rest)
	case "ask":
		return true, runCommand(opts, runAskCommand, rest)
	case "analyze":
		return true, runCommand(opts, runAnalyzeCommand, rest)
	case "scan":
		return true, runCommand(opts, runScanCommand, rest)
	case "compare":
		return true, runCommand(opts, runCompareCommand, rest)
	case "assistant":
		return true, runCommand(opts, runAssistantCommand, rest)
	case "report":
		return true, runCommand(opts, runReportCommand, rest)
	case "health":
		return true, runCommand(opts, runHealthCommand, rest)
	case "config":
		return true, runCommand(opts, runConfigCommand, rest)
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		return false, 0
	}
}

// commandFunc is a subcommand body. Commands that need the backend build
// their own app so that config-only commands never touch the network.
type commandFunc func(opts *globalOptions, args []string) error

func runCommand(opts *globalOptions, handler commandFunc, args []string) int {
	if err := handler(opts, args); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", describeError(err))
		if opts.verbose {
			if e, ok := verrors.As(err); ok && len(e.Stack) > 0 {
				fmt.Fprintf(stderr, "\n%s\n%s", e.Error(), e.StackTrace())
			}
		}
		return exitCodeForError(err)
	}
	return exitOK
}

func parseGlobalOptions(raw []string) (*globalOptions, error) {
	opts := &globalOptions{}
	if val, ok := parseBoolEnv("VULNPILOT_VERBOSE"); ok {
		opts.verbose = val
	}

	filtered := make([]string, 0, len(raw))
	var nextConfig, nextAPIURL bool

	for _, arg := range raw {
		if nextConfig {
			opts.configPath = arg
			nextConfig = false
			continue
		}
		if nextAPIURL {
			opts.apiURL = arg
			nextAPIURL = false
			continue
		}

		switch arg {
		case "--config", "-c":
			nextConfig = true
		case "--api-url":
			nextAPIURL = true
		case "--no-color":
			opts.noColor = true
		case "--trace":
			opts.trace = true
		case "--verbose":
			opts.verbose = true
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				opts.configPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--api-url="):
				opts.apiURL = strings.TrimPrefix(arg, "--api-url=")
			default:
				filtered = append(filtered, arg)
			}
		}
	}

	if nextConfig {
		return nil, fmt.Errorf("--config requires a path argument")
	}
	if nextAPIURL {
		return nil, fmt.Errorf("--api-url requires a URL argument")
	}

	opts.args = filtered
	return opts, nil
}

func parseBoolEnv(key string) (bool, bool) {
	val := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if val == "" {
		return false, false
	}
	switch val {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func printHelp() {
	fmt.Fprintln(stdout, "VulnPilot - AI security analysis from your terminal")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "USAGE:")
	fmt.Fprintln(stdout, "  vulnpilot [FLAGS] <COMMAND> [ARGS]")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "ACCOUNT:")
	fmt.Fprintln(stdout, "  login [--no-browser] [--timeout d]  Sign in with GitHub")
	fmt.Fprintln(stdout, "  logout                              Sign out and clear local session data")
	fmt.Fprintln(stdout, "  whoami                              Show the signed-in user and token claims")
	fmt.Fprintln(stdout, "  callback <url>                      Complete sign-in from a pasted redirect URL")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "REPOSITORIES:")
	fmt.Fprintln(stdout, "  repos [list] [--json]               List your repositories")
	fmt.Fprintln(stdout, "  repos files <owner>/<repo> [--json] List files in a repository")
	fmt.Fprintln(stdout, "  repo-analyze [owner/repo] <question>")
	fmt.Fprintln(stdout, "                                      Analyze a repository (defaults to the git remote)")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "SECURITY:")
	fmt.Fprintln(stdout, "  chat [message]                      Chat with the security assistant")
	fmt.Fprintln(stdout, "  explain <type> [--context text]     Explain a vulnerability class")
	fmt.Fprintln(stdout, "  remediate <type> [--file f]         Get remediation guidance")
	fmt.Fprintln(stdout, "  ask <question>                      Ask a security question")
	fmt.Fprintln(stdout, "  analyze <file>                      Full AI analysis of a source file")
	fmt.Fprintln(stdout, "  scan [--watch] [--concurrency n] <file...>")
	fmt.Fprintln(stdout, "                                      Pattern-based quick scan")
	fmt.Fprintln(stdout, "  compare <a> <b>                     Compare two source files")
	fmt.Fprintln(stdout, "  assistant                           Generate a workflow from requirements")
	fmt.Fprintln(stdout, "  report [--xlsx f] [--html f] <file...>")
	fmt.Fprintln(stdout, "                                      Write a security report")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "OTHER:")
	fmt.Fprintln(stdout, "  health                              Check the backend")
	fmt.Fprintln(stdout, "  config [show|check|path]            Manage configuration")
	fmt.Fprintln(stdout, "  version                             Show version information")
	fmt.Fprintln(stdout, "  help                                Show this help")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "FLAGS:")
	fmt.Fprintln(stdout, "  -c, --config <path>                 Use custom config file")
	fmt.Fprintln(stdout, "  --api-url <url>                     Override api.base_url")
	fmt.Fprintln(stdout, "  --no-color                          Disable colored output")
	fmt.Fprintln(stdout, "  --trace                             Print OpenTelemetry spans to stderr")
	fmt.Fprintln(stdout, "  --verbose                           Log at debug level")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "EXIT CODES:")
	fmt.Fprintln(stdout, "  0 success, 1 failure, 2 configuration, 3 not signed in, 4 backend unreachable")
}

func printVersion() {
	fmt.Fprintf(stdout, "VulnPilot %s\n", version)
	if commit != "unknown" {
		fmt.Fprintf(stdout, "  Commit:     %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Fprintf(stdout, "  Built:      %s\n", buildDate)
	}
	fmt.Fprintf(stdout, "  Go version: %s\n", runtime.Version())
}
