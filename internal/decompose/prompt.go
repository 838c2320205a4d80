package decompose

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

// systemPromptTemplate takes the language, the original request and the
// follow-up question ("None" when absent).
var systemPromptTemplate = heredoc.Doc(`
	You are an expert in problem decomposition and system design. Your task is to first address the follow-up question (if any), then combine it with the main problem, breaking it down into logically coherent and well-defined subproblems.

	Please strictly follow the following instructions:
	1. If there is a follow-up question, first analyze it and make it the main focus of the problem decomposition.
	2. Combine the follow-up question with the original problem so that the decomposition prioritizes the requirements of the follow-up question.
	3. Identify the primary objective that fulfills the user's complete request (including the follow-up question).
	4. Break down the problem into smaller, manageable subproblems. For each subproblem, provide:
	   - A clear and concise title (prioritizing the focus of the follow-up question).
	   - A detailed description outlining its scope and requirements.
	   - An explanation of how the subproblem achieves the objective.
	   Keep the topics of the subproblems as distinct from each other as possible.
	5. Your response must be entirely in %s and strictly follow the JSON format below without any additional commentary.

	Return your output in the exact JSON format:
	{
	  "problem": "<string describing the main problem including follow-up question consideration>",
	  "originalRequest": %s,
	  "followUpQuestion": %s,
	  "mainObjective": "<string describing the primary goal prioritizing the follow-up question>",
	  "subProblems": [
	    {
	      "title": "<brief subproblem title prioritizing the follow-up question focus>",
	      "description": "<detailed description of the subproblem>",
	      "objective": "<how the subproblem helps solve the follow-up question and original request>"
	    }
	  ]
	}`)

// BuildSystemPrompt renders the decomposition system message.
func BuildSystemPrompt(problem, followUp, language string) string {
	if language == "" {
		language = models.DefaultLanguage
	}
	followUpStr := followUp
	if followUpStr == "" {
		followUpStr = "None"
	}
	return fmt.Sprintf(systemPromptTemplate, language, quote(problem), quote(followUpStr))
}

// BuildUserPrompt renders the problem, follow-up, prior solutions and any
// additional context.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	if req.AdditionalContext != "" {
		b.WriteString(req.AdditionalContext)
		if !strings.HasSuffix(req.AdditionalContext, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(req.Ancestors) > 0 {
		b.WriteString("Previous solutions in this thread:\n")
		for i, a := range req.Ancestors {
			fmt.Fprintf(&b, "%d. %s\n   Problem: %s\n   Solution: %s\n", i+1, a.Title, a.Problem, a.Solution)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Original problem: %s", req.Problem)
	if req.FollowUp != "" {
		fmt.Fprintf(&b, "\nFollow-up question:\n%s", req.FollowUp)
	}
	return b.String()
}

// quote renders s as a JSON string literal for the format example.
func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
