package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/odvcencio/vulnpilot/pkg/api"
	"github.com/odvcencio/vulnpilot/pkg/chatbot"
	"github.com/odvcencio/vulnpilot/pkg/codeanalysis"
	"github.com/odvcencio/vulnpilot/pkg/terminal"
)

// chatHistoryTurns bounds the history sent with each chat message.
const chatHistoryTurns = 20

func runChatCommand(opts *globalOptions, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	conv := chatbot.NewConversation(chatbot.New(a.client, a.logger))
	conv.MaxTurns = chatHistoryTurns

	if msg := strings.TrimSpace(strings.Join(args, " ")); msg != "" {
		resp, err := terminal.WithSpinner(a.out, "Thinking", func() (api.ChatResponse, error) {
			return conv.Send(ctx, msg)
		})
		if err != nil {
			return err
		}
		return a.out.Markdown(resp.Response)
	}

	a.out.Dim("Ask a security question. /reset clears the conversation, /quit exits.")
	for {
		line, err := a.out.Prompt("you", "")
		if errors.Is(err, io.EOF) {
			a.out.Newline()
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit", "/q":
			return nil
		case "/reset":
			conv.Reset()
			a.out.Dim("Conversation cleared.")
			continue
		}

		resp, err := terminal.WithSpinner(a.out, "Thinking", func() (api.ChatResponse, error) {
			return conv.Send(ctx, line)
		})
		if err != nil {
			if api.IsUnauthorized(err) || ctx.Err() != nil {
				return err
			}
			a.out.Error("%s", describeError(err))
			continue
		}
		_ = a.out.Markdown(resp.Response)
	}
}

func runExplainCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("explain")
	extra := fs.String("context", "", "describe where the vulnerability appears")
	rest, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	vulnType := strings.TrimSpace(strings.Join(rest, " "))
	if vulnType == "" {
		return fmt.Errorf("usage: vulnpilot explain <vulnerability-type> [--context text]")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := chatbot.New(a.client, a.logger)
	resp, err := terminal.WithSpinner(a.out, "Explaining "+vulnType, func() (api.Explanation, error) {
		return svc.ExplainVulnerability(ctx, api.ExplainRequest{VulnerabilityType: vulnType, Context: *extra})
	})
	if err != nil {
		return err
	}
	a.out.Header(terminal.Label(vulnType))
	return a.out.Markdown(resp.Explanation)
}

func runRemediateCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("remediate")
	file := fs.String("file", "", "source file with the vulnerable code")
	lang := fs.String("lang", "", "language of the code (detected from --file by default)")
	rest, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	vulnType := strings.TrimSpace(strings.Join(rest, " "))
	if vulnType == "" {
		return fmt.Errorf("usage: vulnpilot remediate <vulnerability-type> [--file path] [--lang language]")
	}

	req := api.RemediationRequest{VulnerabilityType: vulnType, Language: *lang}
	if *file != "" {
		src, err := codeanalysis.ReadSource(*file)
		if err != nil {
			return err
		}
		req.CodeSnippet = src.Code
		if req.Language == "" {
			req.Language = src.Language
		}
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := chatbot.New(a.client, a.logger)
	resp, err := terminal.WithSpinner(a.out, "Preparing remediation", func() (api.Remediation, error) {
		return svc.GetRemediation(ctx, req)
	})
	if err != nil {
		return err
	}
	a.out.Header("Remediation: " + terminal.Label(vulnType))
	return a.out.Markdown(resp.Remediation)
}

func runAskCommand(opts *globalOptions, args []string) error {
	fs := newFlagSet("ask")
	category := fs.String("category", "", "question category, e.g. web or crypto")
	rest, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(rest, " "))
	if question == "" {
		return fmt.Errorf("usage: vulnpilot ask <question> [--category name]")
	}

	ctx, cancel := commandContext()
	defer cancel()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := chatbot.New(a.client, a.logger)
	resp, err := terminal.WithSpinner(a.out, "Thinking", func() (api.Answer, error) {
		return svc.AskQuestion(ctx, api.QuestionRequest{Question: question, Category: *category})
	})
	if err != nil {
		return err
	}
	return a.out.Markdown(resp.Answer)
}
