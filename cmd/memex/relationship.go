package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memexlabs/memex/internal/relationship"
	"github.com/memexlabs/memex/internal/store"
)

var (
	relType   string
	relReason string
	relDir    string
	explainDepth int
)

var addRelationshipCmd = &cobra.Command{
	Use:   "add-relationship [from] [to]",
	Short: "Add a typed edge between two episodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := relationship.Relationship{
			From: args[0],
			To:   args[1],
			Type: relationship.Type(relType),
		}
		if relReason != "" {
			r.Metadata.Reason = relReason
		}
		if err := app.eng.AddRelationship(cmd.Context(), r); err != nil {
			return err
		}
		return emit(map[string]bool{"ok": true})
	},
}

var removeRelationshipCmd = &cobra.Command{
	Use:   "remove-relationship [from] [to]",
	Short: "Remove a typed edge between two episodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.eng.RemoveRelationship(cmd.Context(), args[0], args[1], relationship.Type(relType)); err != nil {
			return err
		}
		return emit(map[string]bool{"ok": true})
	},
}

var getRelationshipsCmd = &cobra.Command{
	Use:   "get-relationships [episode-id]",
	Short: "List relationships touching an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := directionOf(relDir)
		rels, err := app.eng.GetRelationships(cmd.Context(), args[0], dir)
		if err != nil {
			return err
		}
		return emit(rels)
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain [episode-id]",
	Short: "Render the relationship graph rooted at an episode as an ASCII tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rels, err := app.eng.GetRelationships(cmd.Context(), args[0], store.DirectionOutgoing)
		if err != nil {
			return err
		}
		g := relationship.NewGraph(rels)
		fmt.Print(g.Render(args[0], explainDepth))
		return nil
	},
}

func directionOf(s string) store.Direction {
	switch s {
	case "incoming":
		return store.DirectionIncoming
	case "both":
		return store.DirectionBoth
	default:
		return store.DirectionOutgoing
	}
}

func init() {
	addRelationshipCmd.Flags().StringVar(&relType, "type", string(relationship.TypeRelatedTo), "relationship type")
	addRelationshipCmd.Flags().StringVar(&relReason, "reason", "", "optional reason annotation")

	removeRelationshipCmd.Flags().StringVar(&relType, "type", string(relationship.TypeRelatedTo), "relationship type")

	getRelationshipsCmd.Flags().StringVar(&relDir, "direction", "outgoing", "outgoing|incoming|both")

	explainCmd.Flags().IntVar(&explainDepth, "depth", 3, "maximum tree depth to render")
}
