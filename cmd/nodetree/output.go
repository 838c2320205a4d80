package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

// Output formats.
const (
	formatTable = "table"
	formatText  = "text"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// nodeView is the YAML shape of a node.
type nodeView struct {
	ID               string         `yaml:"id"`
	Title            string         `yaml:"title"`
	Priority         int            `yaml:"priority"`
	ParentID         string         `yaml:"parentId,omitempty"`
	CreatedAt        string         `yaml:"createdAt"`
	Problem          string         `yaml:"problem"`
	FollowUpQuestion string         `yaml:"followUpQuestion,omitempty"`
	Description      string         `yaml:"description,omitempty"`
	Objective        string         `yaml:"objective,omitempty"`
	Solution         string         `yaml:"solution,omitempty"`
	Metadata         map[string]any `yaml:"metadata,omitempty"`
}

func viewOf(n *models.Node) nodeView {
	return nodeView{
		ID:               n.ID,
		Title:            n.Title,
		Priority:         n.Priority,
		ParentID:         models.Deref(n.ParentID),
		CreatedAt:        n.CreatedAt.UTC().Format(time.RFC3339),
		Problem:          n.Problem,
		FollowUpQuestion: models.Deref(n.FollowUpQuestion),
		Description:      n.Description,
		Objective:        n.Objective,
		Solution:         n.Solution,
		Metadata:         n.Metadata,
	}
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown output format %q (want %s)", format, strings.Join(allowed, ", "))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// writeChainTable renders an ancestor chain, one row per node.
func writeChainTable(w io.Writer, chain []*models.Node) error {
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("#", "ID", "TITLE", "PRIORITY", "CREATED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for i, n := range chain {
		t.Row(
			strconv.Itoa(i+1),
			n.ID,
			models.Truncate(n.Title, 48),
			strconv.Itoa(n.Priority),
			n.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// writeNodeText renders one node for reading.
func writeNodeText(w io.Writer, n *models.Node) {
	title := color.New(color.Bold, color.FgMagenta)
	label := color.New(color.FgHiBlack)

	title.Fprintln(w, n.Title)
	field := func(name, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "  %s %s\n", label.Sprintf("%-10s", name+":"), value)
	}
	field("id", n.ID)
	field("parent", models.Deref(n.ParentID))
	field("priority", strconv.Itoa(n.Priority))
	field("created", n.CreatedAt.Local().Format(time.RFC1123))
	field("language", n.Language())
	field("problem", n.Problem)
	field("follow-up", models.Deref(n.FollowUpQuestion))

	section := func(name, body string) {
		if body == "" {
			return
		}
		fmt.Fprintf(w, "\n%s\n%s\n", color.New(color.Bold).Sprint(name), body)
	}
	section("Objective", n.Objective)
	section("Description", n.Description)
	section("Solution", n.Solution)
}
