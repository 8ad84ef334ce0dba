package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/teilomillet/promptopt/config"
	"github.com/teilomillet/promptopt/tokens"
)

type tokensOptions struct {
	model  string
	asJSON bool
}

// NewTokensCmd creates the tokens command.
func NewTokensCmd() *cobra.Command {
	opts := &tokensOptions{}

	cmd := &cobra.Command{
		Use:   "tokens [text | -]",
		Short: "Count tokens and estimate cost for a prompt",
		Example: `  promptopt tokens "Summarize this article in three bullet points"
  cat prompt.txt | promptopt tokens --model claude-3-sonnet -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			models, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			if opts.model == "" {
				opts.model = cfg.DefaultModel
			}
			counter := newCounter(cfg, models)
			n := counter.CountTokens(text, opts.model)
			cost := counter.EstimateCost(n, opts.model)

			out := cmd.OutOrStdout()
			if opts.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"text_length":    utf8.RuneCountInString(text),
					"token_count":    n,
					"model":          opts.model,
					"estimated_cost": cost,
				})
			}
			printInfo(out, "model", info(opts.model))
			printInfo(out, "tokens", fmt.Sprint(n))
			printInfo(out, "estimated cost", fmt.Sprintf("$%.6f", cost))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Model to count for (default: DEFAULT_MODEL)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON")
	return cmd
}

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	var models []string

	cmd := &cobra.Command{
		Use:   "compare [text | -]",
		Short: "Compare token counts and cost across models",
		Example: `  promptopt compare "Translate to French: good morning"
  promptopt compare --models gpt-4,claude-3-haiku -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			known, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			rows := newCounter(cfg, known).CompareModels(text, models...)
			return writeComparison(cmd, rows)
		},
	}

	cmd.Flags().StringSliceVar(&models, "models", nil, "Models to compare (default: a representative set)")
	return cmd
}

func writeComparison(cmd *cobra.Command, rows []tokens.ModelCost) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tTOKENS\tCOST\tPER 1K")
	for _, r := range rows {
		name := r.Model
		if !r.Supported {
			name += dim(" (unpriced)")
		}
		fmt.Fprintf(tw, "%s\t%d\t$%.6f\t$%.4f\n", name, r.TokenCount, r.EstimatedCost, r.CostPer1KTokens)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}
	if len(rows) > 1 {
		cheapest := rows[0]
		for _, r := range rows[1:] {
			if r.EstimatedCost < cheapest.EstimatedCost {
				cheapest = r
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s cheapest: %s\n", successIcon, cheapest.Model)
	}
	return nil
}
