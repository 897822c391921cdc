package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/memexlabs/memex/internal/episode"
)

var (
	startEpisodeDomain     string
	startEpisodeLanguage   string
	startEpisodeFramework  string
	startEpisodeComplexity string
	startEpisodeTaskType   string
)

var startEpisodeCmd = &cobra.Command{
	Use:   "start-episode [description]",
	Short: "Open a new episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctxData := episode.Context{
			Domain:     startEpisodeDomain,
			Complexity: episode.Complexity(startEpisodeComplexity),
		}
		if startEpisodeLanguage != "" {
			ctxData.Language = &startEpisodeLanguage
		}
		if startEpisodeFramework != "" {
			ctxData.Framework = &startEpisodeFramework
		}

		id, err := app.eng.StartEpisode(cmd.Context(), args[0], ctxData, episode.TaskType(startEpisodeTaskType))
		if err != nil {
			return err
		}
		return emit(map[string]string{"episode_id": id})
	},
}

var logStepCmd = &cobra.Command{
	Use:   "log-step [episode-id]",
	Short: "Append an execution step to an open episode, read as JSON from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var step episode.ExecutionStep
		if err := readJSONArg(stepFlagFile, &step); err != nil {
			return err
		}
		if err := app.eng.LogStep(cmd.Context(), args[0], step); err != nil {
			return err
		}
		return emit(map[string]bool{"ok": true})
	},
}

var stepFlagFile string

var completeEpisodeCmd = &cobra.Command{
	Use:   "complete-episode [episode-id]",
	Short: "Attach an outcome and run the completion sequence, outcome read as JSON from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var outcome episode.Outcome
		if err := readJSONArg(stepFlagFile, &outcome); err != nil {
			return err
		}
		ep, err := app.eng.CompleteEpisode(cmd.Context(), args[0], outcome)
		if err != nil {
			return err
		}
		return emit(ep)
	},
}

var getEpisodeCmd = &cobra.Command{
	Use:   "get-episode [episode-id]",
	Short: "Fetch an episode (open or completed) by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ep, err := app.eng.GetEpisode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(ep)
	},
}

func init() {
	startEpisodeCmd.Flags().StringVar(&startEpisodeDomain, "domain", "", "task domain")
	startEpisodeCmd.Flags().StringVar(&startEpisodeLanguage, "language", "", "programming language, if applicable")
	startEpisodeCmd.Flags().StringVar(&startEpisodeFramework, "framework", "", "framework, if applicable")
	startEpisodeCmd.Flags().StringVar(&startEpisodeComplexity, "complexity", string(episode.ComplexitySimple), "simple|moderate|complex")
	startEpisodeCmd.Flags().StringVar(&startEpisodeTaskType, "task-type", string(episode.TaskOther), "task type")

	logStepCmd.Flags().StringVar(&stepFlagFile, "file", "", "read the JSON payload from this file instead of stdin")
	completeEpisodeCmd.Flags().StringVar(&stepFlagFile, "file", "", "read the JSON payload from this file instead of stdin")
}

// readJSONArg decodes JSON from path, or from stdin when path is empty.
func readJSONArg(path string, v interface{}) error {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(v)
}
