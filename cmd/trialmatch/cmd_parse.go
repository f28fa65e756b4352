package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/internal/logger"
)

type parseOptions struct {
	rules  rulesFlags
	format string
}

type parseResult struct {
	Input     string `json:"input"`
	Canonical string `json:"canonical,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newParseCommand() *cobra.Command {
	opts := &parseOptions{}
	cmd := &cobra.Command{
		Use:   "parse <criterion> [criterion ...]",
		Short: "Parse criteria and print their canonical form",
		Long: `Parse one or more eligibility criteria, e.g.

  trialmatch parse 'AND(IS_MALE, IS_AT_LEAST_X_YEARS_OLD[18])'

Each criterion is printed in canonical form, or with the reason it was
rejected. The command exits with status 1 when any criterion is rejected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.OutOrStdout(), opts, args)
		},
	}

	opts.rules.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	return cmd
}

func runParse(w io.Writer, opts *parseOptions, args []string) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q: must be text or json", opts.format)
	}
	rules, err := opts.rules.build(0)
	if err != nil {
		return err
	}

	results := make([]parseResult, 0, len(args))
	rejected := 0
	for _, arg := range args {
		res := parseResult{Input: arg}
		fn, err := rules.Parser.Parse(arg)
		if err != nil {
			logger.WarnParseFailure("criterion rejected", "criterion", arg, "error", err)
			res.Error = err.Error()
			rejected++
		} else {
			res.Canonical = criteria.Render(fn)
		}
		results = append(results, res)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.Error != "" {
				fmt.Fprintf(w, "REJECTED  %s\n          %s\n", res.Input, res.Error)
				continue
			}
			fmt.Fprintf(w, "OK        %s\n", res.Canonical)
		}
	}

	if rejected > 0 {
		return &RejectedError{Message: fmt.Sprintf("%d of %d criteria rejected", rejected, len(args))}
	}
	return nil
}
