package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dileepadev/blogsync/pkg/blogapi"
	"github.com/dileepadev/blogsync/pkg/config"
	"github.com/dileepadev/blogsync/pkg/syncer"
)

func (a *app) syncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upsert every post into the content API",
		Long: `Upsert every post in the posts directory into the content API.

Required environment:
  API_BASE_URL       Base URL of the content API
  BLOG_SYNC_API_KEY  Key sent in the x-api-key header

Optional environment:
  SITE_URL           Public blog URL used for links and banners

Posts without frontmatter or without a title are skipped. A post that fails
to sync does not stop the others, but makes the command exit non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromViper(a.v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			_, err := a.runSync(cmd.Context(), cfg)
			return err
		},
	}

	return cmd
}

// runSync performs one sync run against a validated config and prints the
// outcome. It returns the summary error when any post failed.
func (a *app) runSync(ctx context.Context, cfg *config.Config) (*syncer.Summary, error) {
	runID := syncer.NewRunID()
	client := blogapi.New(cfg.APIBaseURL, cfg.APIKey,
		blogapi.WithTimeout(cfg.Timeout),
		blogapi.WithRunID(runID),
	)

	s := syncer.New(client, cfg,
		syncer.WithPresenter(a.presenter),
		syncer.WithRunID(runID),
	)

	summary, err := s.Run(ctx)
	if err != nil {
		return nil, err
	}

	if summary.Plan != nil {
		a.presenter.Separator()
		a.presenter.Counts(summary.Counts())
	}
	return summary, summary.Err()
}
