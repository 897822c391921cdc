package main

import (
	"github.com/spf13/cobra"
)

var feedbackSuccess bool

var feedbackCmd = &cobra.Command{
	Use:   "feedback [heuristic-id] [episode-id]",
	Short: "Record an observed outcome of applying a heuristic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.eng.UpdateHeuristicFeedback(cmd.Context(), args[0], args[1], feedbackSuccess); err != nil {
			return err
		}
		return emit(map[string]bool{"ok": true})
	},
}

func init() {
	feedbackCmd.Flags().BoolVar(&feedbackSuccess, "success", true, "whether applying the heuristic succeeded")
}
