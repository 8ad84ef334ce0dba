package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teilomillet/promptopt/config"
	"github.com/teilomillet/promptopt/optimizer"
	"github.com/teilomillet/promptopt/store"
)

type optimizeOptions struct {
	kind      string
	model     string
	reduction float64
	quality   float64
	database  string
	asJSON    bool
}

// NewOptimizeCmd creates the optimize command.
func NewOptimizeCmd() *cobra.Command {
	opts := &optimizeOptions{}

	cmd := &cobra.Command{
		Use:   "optimize [text | -]",
		Short: "Optimize a single prompt and print the result",
		Long: `Runs one optimization in-process: the prompt is tokenized, rewritten by the
target model, tokenized again, priced and scored for quality.

Results are written to an in-memory database unless --db is given.`,
		Example: `  promptopt optimize "Please kindly provide me with a detailed explanation of the concept"
  promptopt optimize --type clarity_improvement --model claude-3-haiku -
  promptopt optimize --type token_reduction --reduction 0.5 --json "..."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := promptText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return runOptimize(cmd, opts, text)
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "type", "t", string(optimizer.TokenReduction), "Optimization type")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "Target model (default: DEFAULT_MODEL)")
	cmd.Flags().Float64Var(&opts.reduction, "reduction", optimizer.DefaultReductionTarget, "Token reduction target, 0.1-0.9")
	cmd.Flags().Float64Var(&opts.quality, "quality", optimizer.DefaultQualityThreshold, "Quality threshold, 1-10")
	cmd.Flags().StringVar(&opts.database, "db", ":memory:", "SQLite database to record the run in")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func runOptimize(cmd *cobra.Command, opts *optimizeOptions, text string) error {
	if _, err := optimizer.ParseKind(opts.kind); err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(ctx, cfg, opts.database)
	if err != nil {
		return err
	}
	defer eng.Close()

	user, err := cliUser(ctx, eng.store)
	if err != nil {
		return err
	}
	prompt := &store.Prompt{UserID: user.ID, Title: "cli", OriginalPrompt: text}
	if err := eng.store.CreatePrompt(ctx, prompt); err != nil {
		return err
	}

	req := optimizer.Request{
		PromptID:    prompt.ID,
		UserID:      user.ID,
		Kind:        opts.kind,
		TargetModel: opts.model,
	}
	if cmd.Flags().Changed("reduction") {
		req.ReductionTarget = &opts.reduction
	}
	if cmd.Flags().Changed("quality") {
		req.QualityThreshold = &opts.quality
	}

	res, err := eng.service.Optimize(ctx, req, func(msg string) {
		fmt.Fprintln(cmd.ErrOrStderr(), dim(msg))
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(out, res.TransformedText)
	fmt.Fprintln(out)
	printSuccess(out, "%s with %s", res.Kind, info(res.Model))
	printInfo(out, "tokens", fmt.Sprintf("%d -> %d (%.1f%%)", res.OriginalTokens, res.TransformedTokens, res.TokenReductionPct))
	printInfo(out, "cost", fmt.Sprintf("$%.6f -> $%.6f", res.OriginalCost, res.TransformedCost))
	printInfo(out, "quality", fmt.Sprintf("%.2f", res.Quality.Overall))
	if res.Quality.JudgmentError != "" {
		printInfo(out, "judge", dim(res.Quality.JudgmentError))
	}
	return nil
}

const cliEmail = "cli@localhost"

// cliUser returns the local unlimited user that owns CLI runs, creating it on
// first use.
func cliUser(ctx context.Context, st *store.Store) (*store.User, error) {
	u, err := st.GetUserByEmail(ctx, cliEmail)
	if !errors.Is(err, store.ErrNotFound) {
		return u, err
	}
	u = &store.User{Email: cliEmail, FullName: "promptopt cli", Tier: store.TierEnterprise, IsActive: true}
	if err := st.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
