package models

import "github.com/google/uuid"

// SubProblem is one unit of work produced by decomposition. It is never
// persisted directly; a Node is created from it once it is solved.
type SubProblem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Objective   string `json:"objective"`
}

// Breakdown is the decomposer's output for one round.
type Breakdown struct {
	Problem          string       `json:"problem"`
	MainObjective    string       `json:"mainObjective"`
	FollowUpQuestion *string      `json:"followUpQuestion"`
	SubProblems      []SubProblem `json:"subProblems"`
}

// DefaultSubProblem builds the single subproblem used when decomposition
// yields nothing: the raw problem becomes the description.
func DefaultSubProblem(problem, followUp string) SubProblem {
	objective := followUp
	if objective == "" {
		objective = "Provide a complete solution"
	}
	return SubProblem{
		ID:          uuid.NewString(),
		Title:       "Solution",
		Description: problem,
		Objective:   objective,
	}
}

// SolverResult is the outcome of solving one subproblem. A failed solve is a
// value, not an error: Content then holds a readable failure message.
type SolverResult struct {
	Success      bool   `json:"success"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	SubProblemID string `json:"subProblemId"`
	// Err is the underlying cause of a failure, kept for classification.
	Err error `json:"-"`
}
