package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dusk-indust/newsroom/internal/news"
	"github.com/dusk-indust/newsroom/internal/orchestrator"
	"github.com/dusk-indust/newsroom/internal/protocol"
)

// renderer prints run progress either as styled lines or as JSON lines.
type renderer struct {
	w    io.Writer
	json bool

	working  lipgloss.Style
	complete lipgloss.Style
	failed   lipgloss.Style
	title    lipgloss.Style
	muted    lipgloss.Style
	box      lipgloss.Style
}

func newRenderer(w io.Writer, asJSON bool) *renderer {
	r := lipgloss.NewRenderer(w)
	return &renderer{
		w:        w,
		json:     asJSON,
		working:  r.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		complete: r.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		failed:   r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		title:    r.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#888888")),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1),
	}
}

// start announces the first stage.
func (r *renderer) start() {
	if r.json {
		return
	}
	r.progress(orchestrator.ProgressEvent{Stage: protocol.StageResearch, Status: orchestrator.ProgressWorking})
}

// notify renders one notification and, in text mode, the stage it starts.
func (r *renderer) notify(n protocol.Notification) {
	if r.json {
		data, err := json.Marshal(n)
		if err != nil {
			fmt.Fprintf(r.w, "{\"stage\":\"error\",\"error\":%q}\n", err.Error())
			return
		}
		fmt.Fprintln(r.w, string(data))
		return
	}
	r.progress(orchestrator.ProgressFor(n))
	if next, ok := orchestrator.NextStage(n); ok {
		r.progress(orchestrator.ProgressEvent{RunID: n.Run(), Stage: next, Status: orchestrator.ProgressWorking})
	}
}

func (r *renderer) progress(ev orchestrator.ProgressEvent) {
	line := orchestrator.FormatProgress(ev)
	switch ev.Status {
	case orchestrator.ProgressWorking:
		line = r.working.Render(line)
	case orchestrator.ProgressComplete:
		line = r.complete.Render(line)
	case orchestrator.ProgressFailed:
		line = r.failed.Render(line)
	}
	fmt.Fprintln(r.w, line)
}

// editorial prints the finished editorial. JSON mode already carried it in
// the editorial_done line.
func (r *renderer) editorial(done *protocol.EditorialDone) {
	if r.json || done == nil {
		return
	}
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.box.Render(lipgloss.JoinVertical(lipgloss.Left,
		r.title.Render(done.Topic),
		r.muted.Render("run "+done.RunID.Short()),
	)))
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, strings.TrimSpace(done.Editorial))
}

// articles prints a news result.
func (r *renderer) articles(res *news.Result) error {
	if r.json {
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if len(res.Articles) == 0 {
		fmt.Fprintln(r.w, r.muted.Render(fmt.Sprintf("no articles for %q", res.Query.Q)))
		return nil
	}
	for i, a := range res.Articles {
		lines := []string{r.title.Render(a.Title)}
		source := a.SourceName
		if source == "" {
			source = a.SourceID
		}
		if meta := strings.TrimSpace(source + " " + a.PubDate); meta != "" {
			lines = append(lines, r.muted.Render(meta))
		}
		if a.Description != "" {
			lines = append(lines, a.Description)
		}
		if a.Link != "" {
			lines = append(lines, r.muted.Render(a.Link))
		}
		fmt.Fprintf(r.w, "%d. %s\n", i+1, strings.Join(lines, "\n   "))
	}
	return nil
}

// markdown formats a finished run as a standalone markdown document.
func markdown(done *protocol.EditorialDone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", done.Topic)
	b.WriteString(strings.TrimSpace(done.Editorial))
	b.WriteString("\n")
	if summary := strings.TrimSpace(done.Summary); summary != "" {
		b.WriteString("\n---\n\n## Research summary\n\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	return b.String()
}

// writeOutputFile writes the editorial to path, creating parent directories.
func writeOutputFile(path string, done *protocol.EditorialDone) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(markdown(done)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
