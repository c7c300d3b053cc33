package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/config"
	"github.com/odvcencio/vulnpilot/pkg/terminal"
)

func runConfigCommand(opts *globalOptions, args []string) error {
	subCmd := "show"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "check":
		return runConfigCheck(opts)
	case "show":
		return runConfigShow(opts)
	case "path":
		return runConfigPath(opts)
	default:
		return fmt.Errorf("unknown config command: %s (use check, show, or path)", subCmd)
	}
}

// configFiles lists the files Load consults, in precedence order.
func configFiles(opts *globalOptions) [][2]string {
	home, _ := os.UserHomeDir()
	files := [][2]string{
		{"user config", filepath.Join(home, ".vulnpilot", "config.yaml")},
		{"project config", ".vulnpilot.yaml"},
	}
	if opts.configPath != "" {
		files = append(files, [2]string{"explicit config", opts.configPath})
	}
	return files
}

func runConfigCheck(opts *globalOptions) error {
	fmt.Fprintln(stdout, "Checking VulnPilot configuration...")
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Configuration files:")
	for _, f := range configFiles(opts) {
		if _, err := os.Stat(f[1]); err == nil {
			fmt.Fprintf(stdout, "  ✓ %-16s %s\n", f[0]+":", f[1])
		} else {
			fmt.Fprintf(stdout, "  - %-16s %s (not found)\n", f[0]+":", f[1])
		}
	}
	fmt.Fprintln(stdout)

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stdout, "✗ Configuration is invalid")
		return err
	}

	fmt.Fprintln(stdout, "Session storage:")
	switch cfg.Storage.Backend {
	case config.StoreBackendMemory:
		fmt.Fprintln(stdout, "  - memory (sessions end with each command)")
	case config.StoreBackendSQLite:
		fmt.Fprintf(stdout, "  ✓ sqlite: %s\n", cfg.DBFilePath())
	default:
		fmt.Fprintf(stdout, "  ✓ file:   %s\n", cfg.TokenFilePath())
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Backend:")
	fmt.Fprintf(stdout, "  api.base_url:    %s\n", cfg.API.BaseURL)
	fmt.Fprintf(stdout, "  callback.listen: %s\n", cfg.Callback.Listen)
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "✓ Configuration is valid")
	return nil
}

func runConfigShow(opts *globalOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

func runConfigPath(opts *globalOptions) error {
	for _, f := range configFiles(opts) {
		fmt.Fprintf(stdout, "%s: %s\n", f[0], f[1])
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "data dir: %s\n", cfg.DataDirPath())
	fmt.Fprintf(stdout, "logs: %s\n", cfg.LogDirPath())
	return nil
}

func runHealthCommand(opts *globalOptions, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: vulnpilot health")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	health, err := terminal.WithSpinner(a.out, "Contacting backend", func() (api.Health, error) {
		return a.client.Health(ctx)
	})
	if err != nil {
		return err
	}

	account := "signed out"
	if user := a.session.User(); user != nil && a.session.Authenticated() {
		account = "signed in as " + user.Username
	}
	pairs := [][2]string{
		{"backend", a.client.BaseURL()},
		{"status", health.Status},
	}
	if health.Service != "" {
		pairs = append(pairs, [2]string{"service", health.Service})
	}
	pairs = append(pairs, [2]string{"session", account})
	a.out.KeyValue(pairs)
	return nil
}
