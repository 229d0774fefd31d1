package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"notebooklm-mcp-server/internal/notebooklm"
	"notebooklm-mcp-server/internal/research"
	"notebooklm-mcp-server/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

var statusStyles = map[store.TaskStatus]lipgloss.Style{
	store.TaskRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	store.TaskCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
	store.TaskImported:  successStyle,
	store.TaskFailed:    errorStyle,
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func renderNotebooks(w io.Writer, notebooks []notebooklm.Notebook) {
	if len(notebooks) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No notebooks found"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Found %d notebook(s)", len(notebooks))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t")
	for _, nb := range notebooks {
		title := nb.Title
		if nb.Icon != "" {
			title = nb.Icon + " " + title
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", idStyle.Render(nb.ID), truncate(title, 60))
	}
	_ = tw.Flush()
}

func renderResearch(w io.Writer, res research.Result) {
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Imported %s source(s)", countStyle.Render(fmt.Sprint(res.SourceCount)))))
	fmt.Fprintln(w, dimStyle.Render("task "+res.TaskID))
	if res.Summary != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, truncate(strings.TrimSpace(res.Summary), 400))
	}
	if len(res.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, src := range res.Sources {
		fmt.Fprintf(w, "%2d. %s\n    %s\n", i+1, truncate(src.Title, 70), idStyle.Render(src.URL))
	}
}

func renderTasks(w io.Writer, tasks []store.ResearchTask) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No research tasks stored"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d research task(s)", len(tasks))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{
		titleStyle.Render("Task"), titleStyle.Render("Status"), titleStyle.Render("Sources"),
		titleStyle.Render("Query"), titleStyle.Render("Updated"),
	}, "\t")+"\t")
	for _, t := range tasks {
		style, ok := statusStyles[t.Status]
		if !ok {
			style = dimStyle
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n",
			idStyle.Render(t.ID),
			style.Render(string(t.Status)),
			len(t.Sources),
			truncate(t.Query, 40),
			dimStyle.Render(t.UpdatedAt.Local().Format(time.DateTime)),
		)
	}
	_ = tw.Flush()
}
