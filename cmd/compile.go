package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"looprec/backend/internal/actionlog"
	"looprec/backend/internal/synth"
)

type compileFlags struct {
	output     string
	baseURL    string
	browser    string
	timeout    int
	maxRetries int
	maxPages   int
	strict     bool
}

func newCompileCmd() *cobra.Command {
	var f compileFlags
	cmd := &cobra.Command{
		Use:   "compile <actions.json|->",
		Short: "Compile an exported action log into a Selenium script",
		Long: `Compile reads an action log, either a record object or a bare action
array, and writes the equivalent Python Selenium script. Script defaults come
from the script section of the configuration and can be overridden by flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the script here instead of stdout")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "override the recorded base URL")
	cmd.Flags().StringVar(&f.browser, "browser", "", "chrome, firefox, edge or safari")
	cmd.Flags().IntVar(&f.timeout, "timeout", 0, "element wait timeout in seconds")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", 0, "attempts per loop row")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "pagination cap per loop")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail when the log produces warnings")
	return cmd
}

func runCompile(cmd *cobra.Command, path string, f compileFlags) error {
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	rec, err := actionlog.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	opts := synth.Options{
		BaseURL:    f.baseURL,
		Browser:    f.browser,
		Timeout:    f.timeout,
		MaxRetries: f.maxRetries,
		MaxPages:   f.maxPages,
	}
	if appCfg != nil {
		if opts.Browser == "" {
			opts.Browser = appCfg.Script.Browser
		}
		if opts.Timeout == 0 {
			opts.Timeout = appCfg.Script.Timeout
		}
		if opts.MaxRetries == 0 {
			opts.MaxRetries = appCfg.Script.MaxRetries
		}
		if opts.MaxPages == 0 {
			opts.MaxPages = appCfg.Script.MaxPages
		}
	}

	program := synth.BuildRecord(rec)
	stderr := cmd.ErrOrStderr()
	warn := color.New(color.FgYellow)
	for _, w := range program.Warnings {
		warn.Fprintln(stderr, "warning:", w)
	}
	if f.strict && len(program.Warnings) > 0 {
		return fmt.Errorf("%d warning(s) in %s", len(program.Warnings), path)
	}

	script := synth.Render(program, opts)
	if f.output == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), script)
		return err
	}
	if err := os.WriteFile(f.output, []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	color.New(color.FgGreen).Fprintf(stderr, "wrote %s: %d actions, %d loop(s)\n",
		f.output, len(rec.Actions), len(program.Loops()))
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action log: %w", err)
	}
	return data, nil
}
