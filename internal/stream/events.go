// Package stream turns round results into ordered server-sent event frames.
package stream

import "github.com/ShayCichocki/nodetree/pkg/models"

// Event types.
const (
	TypeBreakdown    = "breakdown"
	TypeSolverOutput = "solver_output"
	TypeComplete     = "complete"
	TypeError        = "error"
)

// Event is one typed message of a round.
type Event struct {
	Type string
	Data any
}

// Terminal reports whether no event may follow e.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}

// Sink receives the events of a round in order.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event) error

// Send calls f.
func (f SinkFunc) Send(ev Event) error {
	return f(ev)
}

// SolverOutput is the payload of a persisted solve: the flat node plus the
// originating subproblem.
type SolverOutput struct {
	*models.Node
	SubProblemID string `json:"subProblemId"`
	Success      bool   `json:"success"`
}

// SolverFailure is the payload of a failed solve. Nothing was persisted, so it
// carries no node id.
type SolverFailure struct {
	SubProblemID string `json:"subProblemId"`
	Success      bool   `json:"success"`
	Title        string `json:"title"`
	Error        string `json:"error"`
}

// Complete is the terminal summary of a successful round.
type Complete struct {
	ParentID *string `json:"parentId"`
	// Requested is the number of subproblems before bounding.
	Requested  int `json:"requested"`
	Dispatched int `json:"dispatched"`
	// Solved counts successful solves, persisted or not.
	Solved   int  `json:"solved"`
	Failed   int  `json:"failed"`
	Unsaved  int  `json:"unsaved"`
	Degraded bool `json:"degraded"`
	// NodeIDs lists persisted nodes in delivery order.
	NodeIDs []string `json:"nodeIds"`
}

// Error is the terminal payload of a failed round.
type Error struct {
	Error            string  `json:"error"`
	Problem          string  `json:"problem"`
	FollowUpQuestion *string `json:"followUpQuestion"`
}

// NewBreakdown builds the breakdown event.
func NewBreakdown(b *models.Breakdown) Event {
	return Event{Type: TypeBreakdown, Data: b}
}

// NewSolverOutput builds the event for a persisted node.
func NewSolverOutput(node *models.Node, subProblemID string) Event {
	return Event{Type: TypeSolverOutput, Data: SolverOutput{Node: node, SubProblemID: subProblemID, Success: true}}
}

// NewSolverFailure builds the event for a failed solve.
func NewSolverFailure(r models.SolverResult) Event {
	return Event{Type: TypeSolverOutput, Data: SolverFailure{
		SubProblemID: r.SubProblemID,
		Title:        r.Title,
		Error:        r.Content,
	}}
}

// NewComplete builds the terminal success event.
func NewComplete(c Complete) Event {
	if c.NodeIDs == nil {
		c.NodeIDs = []string{}
	}
	return Event{Type: TypeComplete, Data: c}
}

// NewError builds the terminal failure event.
func NewError(err error, problem, followUp string) Event {
	return Event{Type: TypeError, Data: Error{
		Error:            err.Error(),
		Problem:          problem,
		FollowUpQuestion: models.StringPtr(followUp),
	}}
}
