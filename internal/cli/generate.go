package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FairForge/fraudgov-loadtest/internal/generators"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	Count   int
	Country string
	Seed    int64
	OutDir  string
}

// NewGenerateCommand creates the generate command for emitting fixture
// files: transactions, users, rules, and rulesets.
func NewGenerateCommand(root *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:       "generate [transactions|users|rules|rulesets]",
		Short:     "Emit synthetic fixture files",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"transactions", "users", "rules", "rulesets"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := generateFixture(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 100, "number of records")
	cmd.Flags().StringVar(&opts.Country, "country", "IN", "country code for generated data")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "fixtures", "output directory")

	return cmd
}

func generateFixture(kind string, opts *GenerateOptions) (string, error) {
	var payload interface{}

	switch kind {
	case "transactions":
		gen := generators.NewTransactionGenerator(opts.Seed)
		payload = gen.GenerateBatch(opts.Count, opts.Country)
	case "users":
		gen := generators.NewUserGenerator(opts.Seed)
		payload = gen.GenerateBatch(opts.Count)
	case "rules":
		gen := generators.NewRuleGenerator(opts.Seed)
		half := opts.Count / 2
		rules := gen.GenerateBatch(half, generators.RulesetTypeAuth)
		rules = append(rules, gen.GenerateBatch(opts.Count-half, generators.RulesetTypeMonitoring)...)
		payload = rules
	case "rulesets":
		gen := generators.NewRuleGenerator(opts.Seed)
		payload = []generators.Ruleset{
			gen.GenerateRuleset(generators.RulesetTypeAuth, opts.Count, opts.Country, "perf"),
			gen.GenerateRuleset(generators.RulesetTypeMonitoring, opts.Count, opts.Country, "perf"),
		}
	default:
		return "", fmt.Errorf("unknown fixture kind: %s", kind)
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", kind, err)
	}

	path := filepath.Join(opts.OutDir, kind+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
