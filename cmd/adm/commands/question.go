package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// QuestionCommands returns the question commands
func QuestionCommands(env *Env) *cobra.Command {
	questionCmd := &cobra.Command{
		Use:   "question",
		Short: "Question selection commands",
	}

	var sport string
	var points int
	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Select the next question for a sport and point value",
		Long: `Run the selection policy once: a stored question when one is eligible,
a freshly generated one otherwise, and a fallback question when both fail.
A stored question selected here counts as used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuestionNext(cmd.Context(), env, sport, points)
		},
	}
	nextCmd.Flags().StringVar(&sport, "sport", "", "Sport to select from")
	nextCmd.Flags().IntVar(&points, "points", 0, "Point value of the question")
	_ = nextCmd.MarkFlagRequired("sport")
	_ = nextCmd.MarkFlagRequired("points")

	questionCmd.AddCommand(nextCmd)
	return questionCmd
}

func runQuestionNext(ctx context.Context, env *Env, sport string, points int) error {
	category, err := env.parseSport(sport)
	if err != nil {
		return err
	}

	container, err := env.Container(ctx)
	if err != nil {
		return err
	}
	selection, err := container.GetSelectionService()
	if err != nil {
		return err
	}

	view := newQuestionView(selection.GetQuestion(ctx, category, points))
	rows := [][]string{
		{"id", view.ID},
		{"source", view.Source},
		{"sport", view.Sport},
		{"points", strconv.Itoa(view.Points)},
		{"text", view.Text},
		{"options", strings.Join(view.Options, " | ")},
		{"answer", view.CorrectAnswer},
	}
	if view.Explanation != "" {
		rows = append(rows, []string{"explanation", view.Explanation})
	}
	return env.Output.Print(view, nil, rows)
}
