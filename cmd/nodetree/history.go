package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/nodetree/internal/history"
)

var historyOutput string

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the ancestor chain of a node",
	Long: `Show a node and its ancestors in the order they are fed back into prompts:
highest priority first, and oldest first among equal priorities.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", formatTable, "Output format: table, json or yaml")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := checkFormat(historyOutput, formatTable, formatJSON, formatYAML); err != nil {
		return err
	}

	ctx := cmd.Context()
	tree, closeTree, err := openTree(ctx, current.logger)
	if err != nil {
		return err
	}
	defer closeTree()

	chain := tree.Ancestors(ctx, args[0])
	if len(chain) == 0 {
		return fmt.Errorf("%w: %s", history.ErrNotFound, args[0])
	}

	out := cmd.OutOrStdout()
	switch historyOutput {
	case formatJSON:
		return writeJSON(out, chain)
	case formatYAML:
		views := make([]nodeView, len(chain))
		for i, n := range chain {
			views[i] = viewOf(n)
		}
		return writeYAML(out, views)
	default:
		return writeChainTable(out, chain)
	}
}

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one node",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", formatText, "Output format: text, json or yaml")
}

func runShow(cmd *cobra.Command, args []string) error {
	if err := checkFormat(showOutput, formatText, formatJSON, formatYAML); err != nil {
		return err
	}

	ctx := cmd.Context()
	tree, closeTree, err := openTree(ctx, current.logger)
	if err != nil {
		return err
	}
	defer closeTree()

	node, err := tree.Get(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch showOutput {
	case formatJSON:
		return writeJSON(out, node)
	case formatYAML:
		return writeYAML(out, viewOf(node))
	default:
		writeNodeText(out, node)
		return nil
	}
}

