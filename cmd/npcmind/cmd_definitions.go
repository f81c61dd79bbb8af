package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/keshon/npc-mind/internal/mind"
	"github.com/keshon/npc-mind/internal/storage"
)

// defineCmd imports an authored definition
var defineCmd = &cobra.Command{
	Use:   "define <file.yaml>",
	Short: "Import an NPC definition from YAML",
	Long: `Validates the definition and stores it as version 1. The core anchor
(backstory and principles) recorded here is the one every later check is
made against.`,
	Args: cobra.ExactArgs(1),
	RunE: defineNPC,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored NPC definitions",
	Args:  cobra.NoArgs,
	RunE:  listNPCs,
}

var showCmd = &cobra.Command{
	Use:   "show <npc>",
	Short: "Print a stored definition as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  showNPC,
}

func defineNPC(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	def, err := storage.LoadDefinitionFile(args[0])
	if err != nil {
		return err
	}
	stored, v, err := repo.CreateDefinition(ctx, def)
	if err != nil {
		return err
	}
	logger.Info("definition imported", zap.String("npc", stored.ID), zap.String("file", args[0]))
	fmt.Fprintf(cmd.OutOrStdout(), "defined %s (version %d, anchor %s)\n",
		stored.ID, v.Number, mind.AnchorFingerprint(stored.CoreAnchor))
	return nil
}

func listNPCs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	defs, err := repo.ListDefinitions(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tANCHOR\tCREATED")
	for _, d := range defs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, mind.AnchorFingerprint(d.CoreAnchor), d.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func showNPC(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	def, err := repo.GetDefinition(ctx, args[0])
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
