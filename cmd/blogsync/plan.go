package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dileepadev/blogsync/pkg/blogapi"
	"github.com/dileepadev/blogsync/pkg/config"
	"github.com/dileepadev/blogsync/pkg/posts"
	"github.com/dileepadev/blogsync/pkg/syncer"
)

// PlanOutput is the machine readable form of a plan
type PlanOutput struct {
	PostsDir  string         `json:"postsDir" yaml:"postsDir"`
	Existing  int            `json:"existing" yaml:"existing"`
	MaxIndex  int            `json:"maxIndex" yaml:"maxIndex"`
	NextIndex int            `json:"nextIndex" yaml:"nextIndex"`
	Warning   string         `json:"warning,omitempty" yaml:"warning,omitempty"`
	Entries   []syncer.Entry `json:"entries" yaml:"entries"`
}

func (a *app) planCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which index every post would get, without writing",
		Long: `Fetch the existing records once and print the index each local post
would be synced with. Only API_BASE_URL is required; nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("output")
			switch format {
			case "table", "yaml", "json":
			default:
				return errors.Errorf("unsupported output format %q, must be one of: table, yaml, json", format)
			}

			cfg := config.FromViper(a.v)
			if err := cfg.ValidateReadOnly(); err != nil {
				return err
			}

			files, err := posts.Discover(cfg.PostsDir, cfg.Pattern)
			if err != nil {
				return err
			}

			runID := syncer.NewRunID()
			client := blogapi.New(cfg.APIBaseURL, cfg.APIKey,
				blogapi.WithTimeout(cfg.Timeout),
				blogapi.WithRunID(runID),
			)
			s := syncer.New(client, cfg,
				syncer.WithPresenter(a.presenter),
				syncer.WithRunID(runID),
			)

			ctx := cmd.Context()
			plan := s.BuildPlan(ctx, files, s.Snapshot(ctx))

			out := PlanOutput{
				PostsDir:  cfg.PostsDir,
				Existing:  plan.Existing,
				MaxIndex:  plan.MaxIndex,
				NextIndex: plan.NextIndex,
				Entries:   plan.Entries,
			}
			if plan.SnapshotErr != nil {
				out.Warning = "could not fetch existing blogs: " + plan.SnapshotErr.Error()
			}

			return out.Render(cmd.OutOrStdout(), format)
		},
	}

	cmd.Flags().StringP("output", "o", "table", "Output format (table, yaml, json)")
	return cmd
}

// Render writes the plan in the given format
func (o *PlanOutput) Render(w io.Writer, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode plan as JSON")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(o); err != nil {
			return errors.Wrap(err, "failed to encode plan as YAML")
		}
		return enc.Close()
	default:
		return o.renderTable(w)
	}
}

const maxTitleWidth = 60

// truncate shortens s to at most n runes, ending it with "..." when cut
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func (o *PlanOutput) renderTable(w io.Writer) error {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("FILE", "SLUG", "ACTION", "INDEX", "WORDS", "TITLE").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, e := range o.Entries {
		index := "-"
		if e.Index > 0 {
			index = strconv.Itoa(e.Index)
		}
		title := e.Title
		if e.Action == syncer.ActionSkip || e.Action == syncer.ActionError {
			title = e.Reason
		}
		t.Row(e.Filename, e.Slug, string(e.Action), index, strconv.Itoa(e.Words), truncate(title, maxTitleWidth))
	}

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	if o.Warning != "" {
		if _, err := fmt.Fprintf(w, "warning: %s\n", o.Warning); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d existing (max index %d), next index %d\n", o.Existing, o.MaxIndex, o.NextIndex)
	return err
}
