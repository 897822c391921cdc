package main

import (
	"github.com/spf13/cobra"

	"github.com/memexlabs/memex/internal/episode"
)

var (
	retrieveDomain     string
	retrieveComplexity string
	retrieveTaskType   string
	retrieveLimit      int
)

var retrieveContextCmd = &cobra.Command{
	Use:   "retrieve-context [query-text]",
	Short: "Rank past episodes relevant to a domain/task-type context and free-text query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctxData := episode.Context{
			Domain:     retrieveDomain,
			Complexity: episode.Complexity(retrieveComplexity),
		}
		results, err := app.eng.RetrieveRelevantContext(cmd.Context(), args[0], ctxData, episode.TaskType(retrieveTaskType), retrieveLimit)
		if err != nil {
			return err
		}
		return emit(results)
	},
}

func init() {
	retrieveContextCmd.Flags().StringVar(&retrieveDomain, "domain", "", "task domain")
	retrieveContextCmd.Flags().StringVar(&retrieveComplexity, "complexity", string(episode.ComplexitySimple), "simple|moderate|complex")
	retrieveContextCmd.Flags().StringVar(&retrieveTaskType, "task-type", string(episode.TaskOther), "task type")
	retrieveContextCmd.Flags().IntVar(&retrieveLimit, "limit", 10, "maximum results to return")
}
