// Package orchestrator runs solve rounds.
//
// A round decomposes a problem into subproblems, bounds the list, solves each
// subproblem through the solver, persists every successful solution as a
// history node and streams the outcome as events.
//
// Two delivery policies exist:
//   - stream: one subproblem at a time, each event sent before the next
//     subproblem is dispatched
//   - batch: all subproblems concurrently, events sent in declaration order
//     once every solve has finished
//
// Example usage:
//
//	round, err := orchestrator.NewRound(orchestrator.RequiredConfig{
//		Decomposer: decompose.New(provider, logger),
//		Solver:     solver.New(provider, logger),
//		Store:      history.New(backend, logger),
//	}, orchestrator.WithLogger(logger))
//	result, err := round.Run(ctx, orchestrator.Request{Problem: "Build a to-do app tracker"}, stream.NewEmitter(os.Stdout))
package orchestrator
