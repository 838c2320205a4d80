package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/internal/history"
)

var priorityCmd = &cobra.Command{
	Use:   "priority <id> <priority>",
	Short: "Set the priority of a node",
	Long: `Set the priority of a node. Higher priorities move a node earlier in the
ancestor chains it appears in.

The result is printed as JSON. A node that does not exist exits with status 1:
  {"success":false,"error":"node not found"}`,
	Args: cobra.ExactArgs(2),
	RunE: runPriority,
}

func runPriority(cmd *cobra.Command, args []string) error {
	priority, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid priority %q: must be an integer", args[1])
	}

	ctx := cmd.Context()
	tree, closeTree, err := openTree(ctx, current.logger)
	if err != nil {
		return err
	}
	defer closeTree()

	resp, err := tree.UpdatePriority(ctx, history.PriorityRequest{ID: args[0], Priority: priority})
	if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(resp); encErr != nil {
		return encErr
	}
	if err != nil {
		current.logger.Debug("priority update failed", zap.Error(err))
		return errReported
	}
	return nil
}
