package main

import (
	"github.com/spf13/cobra"

	"github.com/liamcoop/trialmatch/internal/app"
	"github.com/liamcoop/trialmatch/internal/config"
	"github.com/liamcoop/trialmatch/internal/logger"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trialmatch",
		Short: "Parse eligibility criteria and match patients to clinical trials",
		Long: `trialmatch parses curated trial eligibility criteria, evaluates them
against a patient record and reports potential eligibility per trial and cohort.

The HTTP API is served by the separate server binary.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			logger.SetLevel(logger.LevelDebug)
		}
	}

	cmd.AddCommand(newParseCommand())
	cmd.AddCommand(newMatchCommand())
	cmd.AddCommand(newRulesCommand())
	cmd.AddCommand(newMigrateCommand())

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

// rulesFlags are shared by every command that parses or evaluates criteria
type rulesFlags struct {
	references string
	bindings   string
	orPolicy   string
}

func (f *rulesFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.references, "references", "", "YAML file with treatment, drug and category references")
	cmd.Flags().StringVar(&f.bindings, "bindings", "", "YAML file replacing the built-in CEL rule bindings")
	cmd.Flags().StringVar(&f.orPolicy, "or-recoverability", "all", "Recoverability of an OR of failures: all or any")
}

func (f *rulesFlags) build(concurrency int) (*app.Rules, error) {
	return app.NewRules(&config.Config{
		Rules: config.RulesConfig{ReferencesFile: f.references, BindingsFile: f.bindings},
		Match: config.MatchConfig{Concurrency: concurrency, OrRecoverability: f.orPolicy},
	})
}
