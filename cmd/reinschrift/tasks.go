package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danst0/reinschrift/internal/app"
	"github.com/danst0/reinschrift/internal/task"
	"github.com/danst0/reinschrift/internal/ui"
	"github.com/danst0/reinschrift/internal/view"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Long: `Add a task to the task file. Without flags the task is due today.

Examples:
  reinschrift add "Buy milk"
  reinschrift add "Call mom" --due "next sunday" --every weekly
  reinschrift add "Write report" -p work -c office --due 2024-06-01`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, _ := cmd.Flags().GetString("due")
			project, _ := cmd.Flags().GetString("project")
			context, _ := cmd.Flags().GetString("context")
			every, _ := cmd.Flags().GetString("every")

			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()
			a, err := e.requireApp(cmd)
			if err != nil {
				return err
			}

			title := strings.Join(args, " ")
			var c app.Command = app.Add{Title: title}
			if due != "" || project != "" || context != "" || every != "" {
				item, err := buildItem(title, due, project, context, every, time.Now())
				if err != nil {
					return err
				}
				c = app.AddItem{Item: item}
			}
			return report(a.Dispatch(cmd.Context(), c))
		},
	}
	cmd.Flags().StringP("due", "d", "", "Due date: YYYY-MM-DD, today, tomorrow, someday or a phrase like \"next friday\"")
	cmd.Flags().StringP("project", "p", "", "Project (+project)")
	cmd.Flags().StringP("context", "c", "", "Context (@context)")
	cmd.Flags().StringP("every", "e", "", "Repeat: daily, weekly or monthly")
	return cmd
}

// buildItem turns add flags into an item. An empty due means today.
func buildItem(title, due, project, context, every string, now time.Time) (task.Item, error) {
	item := task.Item{
		Title:   strings.TrimSpace(title),
		Project: strings.TrimPrefix(strings.TrimSpace(project), "+"),
		Context: strings.TrimPrefix(strings.TrimSpace(context), "@"),
	}
	if item.Title == "" {
		return task.Item{}, errors.New("title is required")
	}

	if due == "" {
		item.Due = task.DateOf(now).Ptr()
	} else {
		d, err := task.ParseDue(due, now)
		if err != nil {
			return task.Item{}, err
		}
		item.Due = d
	}

	rec, ok := task.ParseRecurrence(every)
	if !ok {
		return task.Item{}, fmt.Errorf("unknown recurrence %q (use daily, weekly or monthly)", every)
	}
	item.Recurrence = rec
	return item, nil
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List tasks grouped like the interactive view.

Examples:
  reinschrift list
  reinschrift list --due
  reinschrift list --sort date --all
  reinschrift list --search milk --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()
			a, err := e.requireApp(cmd)
			if err != nil {
				return err
			}

			vs := a.State().View
			if cmd.Flags().Changed("all") {
				vs.ShowDone, _ = cmd.Flags().GetBool("all")
			}
			if cmd.Flags().Changed("due") {
				vs.DueOnly, _ = cmd.Flags().GetBool("due")
			}
			vs.Search, _ = cmd.Flags().GetString("search")
			if s, _ := cmd.Flags().GetString("sort"); s != "" {
				mode, ok := view.ParseSortMode(s)
				if !ok {
					return fmt.Errorf("unknown sort %q (use topic, location or date)", s)
				}
				vs.Sort = mode
			}

			today := a.Today()
			res := view.Reconcile(a.Items(), vs, view.Selection{}, today, a.Translator())

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(res, today)
			}
			if len(res.Entries) == 0 {
				fmt.Println(dimStyle.Render(a.Translator().T("no_tasks")))
				return nil
			}
			for _, entry := range res.Entries {
				if entry.IsHeader() {
					fmt.Println(boldStyle.Render(entry.Header))
					continue
				}
				fmt.Println(formatItem(*entry.Item, today, a.Translator()))
			}
			return nil
		},
	}
	cmd.Flags().BoolP("all", "a", false, "Include completed tasks")
	cmd.Flags().Bool("due", false, "Only tasks due today or earlier")
	cmd.Flags().StringP("search", "s", "", "Filter by title")
	cmd.Flags().String("sort", "", "Sort: topic, location or date")
	cmd.Flags().Bool("json", false, "Output JSON")
	return cmd
}

// formatItem renders one list line: box, title, tags and due info.
func formatItem(it task.Item, today task.Date, tr interface{ T(string) string }) string {
	box := "[ ]"
	if it.Done {
		box = "[x]"
	}
	parts := []string{box, it.Title}
	if it.Project != "" {
		parts = append(parts, dimStyle.Render("+"+it.Project))
	}
	if it.Context != "" {
		parts = append(parts, dimStyle.Render("@"+it.Context))
	}
	if it.IsRecurring() {
		parts = append(parts, dimStyle.Render(ui.IconRecur()+" "+string(it.Recurrence)))
	}
	if info := ui.BuildDueInfo(it.Due, today, tr.T("today"), tr.T("sometimes")); info.Text != "" {
		style := dimStyle
		if !it.Done {
			style = style.Foreground(ui.DueSeverityColor(info.Severity))
		}
		parts = append(parts, style.Render(info.Text))
	}
	return "  " + strings.Join(parts, " ")
}

type jsonTask struct {
	Title      string `json:"title"`
	Section    string `json:"section,omitempty"`
	Project    string `json:"project,omitempty"`
	Context    string `json:"context,omitempty"`
	Due        string `json:"due,omitempty"`
	Recurrence string `json:"recurrence,omitempty"`
	Marker     string `json:"marker,omitempty"`
	Done       bool   `json:"done"`
	Group      string `json:"group,omitempty"`
}

func printJSON(res view.Result, today task.Date) error {
	out := []jsonTask{}
	group := ""
	for _, entry := range res.Entries {
		if entry.IsHeader() {
			group = entry.Header
			continue
		}
		it := entry.Item
		jt := jsonTask{
			Title:      it.Title,
			Section:    it.Section,
			Project:    it.Project,
			Context:    it.Context,
			Recurrence: string(it.Recurrence),
			Marker:     it.Marker,
			Done:       it.Done,
			Group:      group,
		}
		if it.Due != nil {
			jt.Due = it.Due.String()
		}
		out = append(out, jt)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newToggleCmd(use, short string, done bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <title|^marker>",
		Short: short,
		Long: short + `. The task is chosen by a case-insensitive part of its title
or by its ^marker; the match must be unique.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()
			a, err := e.requireApp(cmd)
			if err != nil {
				return err
			}

			item, err := pickItem(a.Items(), strings.Join(args, " "), !done)
			if err != nil {
				return err
			}
			return report(a.Dispatch(cmd.Context(), app.Toggle{Item: item, Done: done}))
		},
	}
}

// pickItem finds the one item with the given done state matching query.
// A query starting with ^ matches the marker exactly; an exact title match
// wins over partial ones.
func pickItem(items []task.Item, query string, done bool) (task.Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return task.Item{}, errors.New("no task given")
	}

	var matches []task.Item
	for _, it := range items {
		if it.Done != done {
			continue
		}
		if marker, ok := strings.CutPrefix(query, "^"); ok {
			if it.Marker == marker {
				return it, nil
			}
			continue
		}
		if strings.EqualFold(it.Title, query) {
			return it, nil
		}
		if it.Matches(query) {
			matches = append(matches, it)
		}
	}

	switch len(matches) {
	case 0:
		return task.Item{}, fmt.Errorf("no matching task for %q", query)
	case 1:
		return matches[0], nil
	}
	titles := make([]string, len(matches))
	for i, m := range matches {
		titles[i] = "  " + m.Title
	}
	return task.Item{}, fmt.Errorf("%q matches %d tasks:\n%s", query, len(matches), strings.Join(titles, "\n"))
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently completed tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			e, err := openEnv(cmd, false)
			if err != nil {
				return err
			}
			defer e.Close()

			completions, err := e.db.RecentCompletions(limit)
			if err != nil {
				return err
			}
			if len(completions) == 0 {
				fmt.Println(dimStyle.Render("Nothing completed yet"))
				return nil
			}

			now := time.Now()
			for _, c := range completions {
				line := fmt.Sprintf("%-16s %s", ui.FormatAgo(c.CompletedAt, now), c.Title)
				if c.Project != "" {
					line += " " + dimStyle.Render("+"+c.Project)
				}
				if c.NextDue != "" {
					line += " " + dimStyle.Render(ui.IconRecur()+" "+c.NextDue)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of entries")
	return cmd
}

// report prints an outcome and turns errors into a failing exit status.
func report(out app.Outcome) error {
	if out.Severity == app.Error {
		return errors.New(out.Message)
	}
	if !out.IsZero() {
		fmt.Println(successStyle.Render(out.Message))
	}
	return nil
}
