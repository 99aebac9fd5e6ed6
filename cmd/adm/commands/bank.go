package commands

import (
	"context"
	"strconv"
	"time"

	"sportstrivia/internal/models"
	contextutils "sportstrivia/internal/utils"

	"github.com/spf13/cobra"
)

// BankCommands returns the question bank commands
func BankCommands(env *Env) *cobra.Command {
	bankCmd := &cobra.Command{
		Use:   "bank",
		Short: "Question bank commands",
		Long: `Question bank commands for the trivia service.

Available commands:
  stats     - Count stored questions per sport and point value
  generate  - Generate and store questions for a sport`,
	}

	bankCmd.AddCommand(bankStatsCmd(env))
	bankCmd.AddCommand(bankGenerateCmd(env))

	return bankCmd
}

func bankStatsCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show question bank counts",
		Long:  `Show total, eligible and never used question counts for every sport and point value.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBankStats(cmd.Context(), env)
		},
	}
}

func runBankStats(ctx context.Context, env *Env) error {
	container, err := env.Container(ctx)
	if err != nil {
		return err
	}
	bank, err := container.GetQuestionBank()
	if err != nil {
		return err
	}

	stats, err := bank.Stats(ctx)
	if err != nil {
		env.Logger.Error(ctx, "Failed to read bank stats", err, nil)
		return contextutils.WrapError(err, "failed to read bank stats")
	}

	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			string(s.Category),
			strconv.Itoa(s.Difficulty),
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Eligible),
			strconv.Itoa(s.Unused),
		})
	}
	return env.Output.Print(stats, []string{"SPORT", "POINTS", "TOTAL", "ELIGIBLE", "UNUSED"}, rows)
}

// generateOptions holds the bank generate flags
type generateOptions struct {
	sport  string
	points int
	count  int
	pacing time.Duration
}

// generatedRow is one line of bank generate output
type generatedRow struct {
	Points int    `json:"points"`
	ID     string `json:"id,omitempty"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}

func bankGenerateCmd(env *Env) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate questions into the bank",
		Long: `Generate questions for one sport and store them in the bank.

Point values rotate through the sport's catalog unless --points is given.
Use --pacing to spread requests out for rate limited providers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBankGenerate(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sport, "sport", "", "Sport to generate questions for")
	cmd.Flags().IntVar(&opts.points, "points", 0, "Only generate this point value")
	cmd.Flags().IntVar(&opts.count, "count", 10, "Number of questions to generate")
	cmd.Flags().DurationVar(&opts.pacing, "pacing", 2*time.Second, "Delay between generation requests")
	_ = cmd.MarkFlagRequired("sport")

	return cmd
}

func runBankGenerate(ctx context.Context, env *Env, opts *generateOptions) error {
	category, err := env.parseSport(opts.sport)
	if err != nil {
		return err
	}
	if opts.count <= 0 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "count must be positive, got %d", opts.count)
	}

	points := env.Config.PointValues(string(category))
	if opts.points != 0 {
		if _, ok := env.Config.PointValue(string(category), opts.points); !ok {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "%s has no %d point questions", category, opts.points)
		}
		points = []int{opts.points}
	}

	container, err := env.Container(ctx)
	if err != nil {
		return err
	}
	generator, err := container.GetQuestionGenerator()
	if err != nil {
		return err
	}

	env.Logger.Info(ctx, "Generating questions", map[string]interface{}{
		"category": string(category),
		"count":    opts.count,
		"pacing":   opts.pacing.String(),
	})

	results := make([]generatedRow, 0, opts.count)
	succeeded := 0
	for i := 0; i < opts.count; i++ {
		if i > 0 && !pause(ctx, opts.pacing) {
			break
		}
		p := points[i%len(points)]
		q, err := generator.Generate(ctx, category, p)
		if err != nil {
			results = append(results, generatedRow{Points: p, Error: err.Error()})
			env.Output.Line("[%d/%d] %d points: failed: %v", i+1, opts.count, p, err)
			continue
		}
		succeeded++
		results = append(results, generatedRow{Points: p, ID: q.ID, Text: q.Text})
		env.Output.Line("[%d/%d] %d points: %s", i+1, opts.count, p, q.Text)
	}

	if !env.Output.Table() {
		if err := env.Output.Print(results, nil, nil); err != nil {
			return err
		}
	}
	env.Output.Line("Generated %d of %d %s questions", succeeded, opts.count, category)

	if succeeded == 0 {
		return contextutils.WrapErrorf(contextutils.ErrGenerationExhausted, "no %s questions were generated", category)
	}
	return nil
}

// pause waits d and reports false if ctx ended first
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// questionView is the adm rendering of a question
type questionView struct {
	ID            string   `json:"id"`
	Sport         string   `json:"sport"`
	Points        int      `json:"points"`
	Source        string   `json:"source"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

func newQuestionView(q *models.Question) questionView {
	return questionView{
		ID:            q.ID,
		Sport:         string(q.Category),
		Points:        q.Difficulty,
		Source:        string(q.Source),
		Text:          q.Text,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}
}
