package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liamcoop/trialmatch/criteria"
	"github.com/liamcoop/trialmatch/evaluators"
)

func newRulesCommand() *cobra.Command {
	var flags rulesFlags
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rule vocabulary and how each rule is evaluated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRules(cmd.OutOrStdout(), &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runRules(w io.Writer, flags *rulesFlags) error {
	rules, err := flags.build(0)
	if err != nil {
		return err
	}
	native := evaluators.Native()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tPARAMETERS\tEVALUATOR")
	for _, r := range criteria.CompositeRules() {
		fmt.Fprintf(tw, "%s\tcriteria\tcomposite\n", r)
	}
	for _, r := range rules.Registry.Rules() {
		source := "cel"
		if _, ok := native[r]; ok {
			source = "native"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r, paramKinds(r), source)
	}
	return tw.Flush()
}

func paramKinds(r criteria.Rule) string {
	kinds := r.ParamKinds()
	if len(kinds) == 0 {
		return "-"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
