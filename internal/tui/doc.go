// Package tui provides the terminal view of a running solve round.
//
// The view is fed the same events the SSE stream carries. It lists the
// subproblems of the breakdown with a spinner on the ones being solved and
// marks each as solved, failed or unsaved as results arrive. Once the round
// ends the user can quit with 'q' or press 'f' to ask a follow-up question,
// which the caller runs as the next round.
//
// Usage:
//
//	app := tui.NewRoundApp(problem, followUp, true)
//	program := tea.NewProgram(app)
//	go func() {
//		_, err := round.Run(ctx, req, tui.Sink(program))
//		program.Send(tui.DoneMsg{Err: err})
//	}()
//	program.Run()
//	next := app.FollowUp()
package tui
