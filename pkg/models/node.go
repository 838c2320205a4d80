package models

import "time"

// DefaultLanguage is used when a request does not carry a language.
const DefaultLanguage = "English"

// MetadataLanguage is the recognized metadata key for the response language.
const MetadataLanguage = "language"

// Node is one persisted, solved subproblem and its position in the history tree.
type Node struct {
	// ID is the canonical identifier (lowercase hyphenated UUID).
	ID string `json:"id" bson:"_id"`
	// Title is the subproblem title.
	Title string `json:"title" bson:"title"`
	// Description is the subproblem description.
	Description string `json:"description" bson:"description"`
	// Objective explains how the subproblem serves the main objective.
	Objective string `json:"objective" bson:"objective"`
	// Solution is the generated solution text.
	Solution string `json:"solution" bson:"solution"`
	// Problem is the original problem text of the round that produced the node.
	Problem string `json:"problem" bson:"problem"`
	// FollowUpQuestion is the follow-up question of that round, if any.
	FollowUpQuestion *string `json:"followUpQuestion" bson:"followUpQuestion"`
	// CreatedAt is when the node was created.
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	// ParentID is the ID of the parent node, nil for a root.
	ParentID *string `json:"parentId" bson:"parentId"`
	// Metadata carries free-form attributes; "language" is recognized.
	Metadata map[string]any `json:"metadata" bson:"metadata"`
	// Priority weights the node when it appears in an ancestor chain.
	Priority int `json:"priority" bson:"priority"`
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentID == nil || *n.ParentID == ""
}

// Language returns the node's language metadata or DefaultLanguage.
func (n *Node) Language() string {
	if n.Metadata != nil {
		if lang, ok := n.Metadata[MetadataLanguage].(string); ok && lang != "" {
			return lang
		}
	}
	return DefaultLanguage
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.FollowUpQuestion != nil {
		q := *n.FollowUpQuestion
		c.FollowUpQuestion = &q
	}
	if n.ParentID != nil {
		p := *n.ParentID
		c.ParentID = &p
	}
	if n.Metadata != nil {
		c.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// AncestorSummary is the slice of an ancestor node that is fed back into prompts.
type AncestorSummary struct {
	Title    string `json:"title"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
}

// Summarize converts an ancestor chain into prompt summaries, capping each
// solution at limit runes. A limit <= 0 disables the cap.
func Summarize(chain []*Node, limit int) []AncestorSummary {
	out := make([]AncestorSummary, 0, len(chain))
	for _, n := range chain {
		if n == nil {
			continue
		}
		out = append(out, AncestorSummary{
			Title:    n.Title,
			Problem:  n.Problem,
			Solution: Truncate(n.Solution, limit),
		})
	}
	return out
}

// Truncate caps s at limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
