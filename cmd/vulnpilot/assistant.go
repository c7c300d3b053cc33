package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/odvcencio/vulnpilot/pkg/assistant"
	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
	"github.com/odvcencio/vulnpilot/pkg/terminal"
)

func runAssistantCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("assistant")
	prompt := fs.String("prompt", "", "generate from this prompt without the interactive sheet")
	outPath := fs.String("out", "", "write the workflow definition to a file")
	asJSON := fs.Bool("json", false, "print only the workflow JSON")
	rest, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("usage: vulnpilot assistant [--prompt text] [--out file] [--json]")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	gen := assistant.NewGenerator(a.client, a.logger, a.hub)
	open := true
	sheet := assistant.NewSheet(gen.Props(true, func(o bool) { open = o }))
	sheet.SetWidth(min(a.out.Width(), 100))

	if *prompt != "" {
		sheet.SetPrompt(*prompt)
		_, err = terminal.WithSpinner(a.out, assistant.GeneratingLabel, func() (struct{}, error) {
			return struct{}{}, sheet.Submit(ctx)
		})
	} else {
		err = sheet.Run(ctx, stdin, stdout)
	}
	if err != nil {
		return err
	}

	raw := gen.Workflow()
	if raw == nil {
		if msg, ok := gen.Err(); ok {
			return verrors.New(verrors.ErrCodeInvalidInput, msg)
		}
		if !open {
			a.out.Dim("Cancelled.")
		}
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, append(pretty.Bytes(), '\n'), 0o644); err != nil {
			return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "write workflow")
		}
	}
	if *asJSON {
		_, err := fmt.Fprintln(stdout, pretty.String())
		return err
	}

	summary, err := assistant.Summarize(raw)
	if err != nil {
		return err
	}
	lines := []string{fmt.Sprintf("%d nodes, %d edges", summary.Nodes, summary.Edges)}
	if summary.Schedule != "" {
		lines = append(lines, "Runs "+summary.Schedule)
	}
	if *outPath != "" {
		lines = append(lines, "Saved to "+*outPath)
	}
	title := summary.Name
	if title == "" {
		title = "Workflow"
	}
	a.out.Box(title, strings.Join(lines, "\n"))
	if *outPath == "" {
		highlighted, herr := terminal.Highlight(pretty.String(), "json", a.out.Color())
		if herr != nil {
			highlighted = pretty.String()
		}
		a.out.Println("%s", strings.TrimRight(highlighted, "\n"))
	}
	return nil
}
