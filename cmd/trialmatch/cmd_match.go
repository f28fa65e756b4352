package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/liamcoop/trialmatch/catalog"
	"github.com/liamcoop/trialmatch/evaluation"
	"github.com/liamcoop/trialmatch/internal/logger"
	"github.com/liamcoop/trialmatch/match"
	"github.com/liamcoop/trialmatch/patient"
	"github.com/liamcoop/trialmatch/store"
)

type matchOptions struct {
	rules       rulesFlags
	patientFile string
	trialsFile  string
	concurrency int
	format      string
	strict      bool
}

type matchReport struct {
	RunID     string             `json:"runId"`
	PatientID string             `json:"patientId"`
	Summary   match.Summary      `json:"summary"`
	Matches   []match.TrialMatch `json:"matches"`
	Blocked   map[string]string  `json:"blocked,omitempty"`
}

func newMatchCommand() *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "match --patient <record.json> --trials <trials.yaml>",
		Short: "Match a patient record against curated trials",
		Long: `Evaluate every trial in a trials file against one patient record and
report potential eligibility per trial and cohort.

Trials whose criteria do not parse are reported and left out of matching.
With --strict the command exits with status 1 when any trial is blocked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	opts.rules.register(cmd)
	cmd.Flags().StringVarP(&opts.patientFile, "patient", "p", "", "Patient record (JSON)")
	cmd.Flags().StringVarP(&opts.trialsFile, "trials", "t", "", "Trial configurations (YAML)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Trials matched in parallel (0 uses all CPUs)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail when any trial is blocked")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("trials")

	return cmd
}

func runMatch(ctx context.Context, w io.Writer, opts *matchOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", opts.format)
	}

	rules, err := opts.rules.build(opts.concurrency)
	if err != nil {
		return err
	}

	record, err := loadPatient(opts.patientFile)
	if err != nil {
		return err
	}

	if _, err := os.Stat(opts.trialsFile); err != nil {
		return fmt.Errorf("failed to read trials file: %w", err)
	}
	trials, err := store.OpenFileStore(ctx, opts.trialsFile)
	if err != nil {
		return err
	}
	cat := catalog.New(trials, rules.Parser)
	if err := cat.Reload(ctx); err != nil {
		return err
	}

	report := matchReport{RunID: uuid.New().String(), PatientID: record.PatientID}
	start := time.Now()
	report.Matches, err = rules.Matcher.DetermineEligibility(ctx, record, cat.Trials())
	if err != nil {
		logger.ErrorEvaluator("matching failed", "runId", report.RunID, "error", err)
		return err
	}
	report.Summary = match.Summarize(report.Matches)
	logger.Debug("patient matched", "runId", report.RunID, "duration", time.Since(start).String())

	blocked := cat.Blocked()
	if len(blocked) > 0 {
		report.Blocked = make(map[string]string, len(blocked))
		for id, err := range blocked {
			report.Blocked[id] = err.Error()
		}
	}

	if opts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else if err := writeMatchTable(w, report); err != nil {
		return err
	}

	if opts.strict && len(blocked) > 0 {
		return &RejectedError{Message: fmt.Sprintf("%d trial(s) blocked", len(blocked))}
	}
	return nil
}

func loadPatient(path string) (patient.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return patient.Record{}, fmt.Errorf("failed to open patient record: %w", err)
	}
	defer f.Close()
	return patient.Load(f)
}

func writeMatchTable(w io.Writer, report matchReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Patient %s (run %s)\n\n", report.PatientID, report.RunID)
	fmt.Fprintln(tw, "TRIAL\tCOHORT\tPOTENTIALLY ELIGIBLE\tFAILED")
	for _, tm := range report.Matches {
		fmt.Fprintf(tw, "%s\t-\t%s\t%s\n", tm.Identification.TrialID, yesNo(tm.IsPotentiallyEligible), failures(tm.Evaluations))
		for _, c := range tm.Cohorts {
			fmt.Fprintf(tw, "\t%s\t%s\t%s\n", c.Metadata.CohortID, yesNo(tm.IsPotentiallyEligible && c.IsPotentiallyEligible), failures(c.Evaluations))
		}
		for _, c := range tm.NonEvaluableCohorts {
			fmt.Fprintf(tw, "\t%s\tnot evaluable\t\n", c.Metadata.CohortID)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := report.Summary
	fmt.Fprintf(w, "\n%d of %d trials and %d of %d cohorts potentially eligible\n",
		s.PotentiallyEligibleTrials, s.Trials, s.PotentiallyEligibleCohorts, s.Cohorts)

	if len(report.Blocked) > 0 {
		ids := make([]string, 0, len(report.Blocked))
		for id := range report.Blocked {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintf(w, "\nBlocked trials:\n")
		for _, id := range ids {
			fmt.Fprintf(w, "  %s: %s\n", id, report.Blocked[id])
		}
	}
	return nil
}

// failures counts unrecoverable failures among evals
func failures(evals match.Evaluations) string {
	n := 0
	for _, e := range evals {
		if e.Evaluation.Result() == evaluation.Fail && !e.Evaluation.Recoverable() {
			n++
		}
	}
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
