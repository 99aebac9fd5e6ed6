package commands

import (
	"strconv"

	"sportstrivia/internal/similarity"

	"github.com/spf13/cobra"
)

// similarityResult is the output of the similarity command
type similarityResult struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Distance   int     `json:"distance"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold,omitempty"`
	Duplicate  *bool   `json:"duplicate,omitempty"`
}

// SimilarityCommand returns the similarity command
func SimilarityCommand(env *Env) *cobra.Command {
	var sport string

	cmd := &cobra.Command{
		Use:   "similarity <text-a> <text-b>",
		Short: "Score two question texts",
		Long: `Print the edit distance and similarity score of two texts.
With --sport, also report whether the dedup gate would treat them as duplicates.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			res := similarityResult{
				A:          args[0],
				B:          args[1],
				Distance:   similarity.Distance(args[0], args[1]),
				Similarity: similarity.Similarity(args[0], args[1]),
			}
			rows := [][]string{
				{"distance", strconv.Itoa(res.Distance)},
				{"similarity", strconv.FormatFloat(res.Similarity, 'f', 4, 64)},
			}

			if sport != "" {
				category, err := env.parseSport(sport)
				if err != nil {
					return err
				}
				res.Threshold = env.Config.DedupThreshold(string(category))
				duplicate := res.Similarity > res.Threshold
				res.Duplicate = &duplicate
				rows = append(rows,
					[]string{"threshold", strconv.FormatFloat(res.Threshold, 'f', 2, 64)},
					[]string{"duplicate", strconv.FormatBool(duplicate)},
				)
			}

			return env.Output.Print(res, nil, rows)
		},
	}
	cmd.Flags().StringVar(&sport, "sport", "", "Apply this sport's dedup threshold")

	return cmd
}
