package history

import (
	"context"
	"errors"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

// PriorityRequest asks for a node's priority to be changed.
type PriorityRequest struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
}

// PriorityResponse reports the outcome of a PriorityRequest. Error is set
// only when Success is false.
type PriorityResponse struct {
	Success bool         `json:"success"`
	Node    *models.Node `json:"node,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// UpdatePriority applies req. Not-found yields a failed response together with
// ErrNotFound so callers can both render and classify it.
func (t *Tree) UpdatePriority(ctx context.Context, req PriorityRequest) (PriorityResponse, error) {
	node, err := t.SetPriority(ctx, req.ID, req.Priority)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrNotFound) {
			msg = ErrNotFound.Error()
		}
		return PriorityResponse{Error: msg}, err
	}
	return PriorityResponse{Success: true, Node: node}, nil
}
