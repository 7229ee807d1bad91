// Package syncer reconciles local blog posts with the remote content API.
//
// A run fetches the remote records once, plans an index for every local post
// (existing slugs keep theirs, new slugs are appended after the current
// maximum) and then upserts each planned post. A failing post never stops the
// others; failures are collected into the run Summary.
package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/dileepadev/blogsync/pkg/blogapi"
	"github.com/dileepadev/blogsync/pkg/config"
	"github.com/dileepadev/blogsync/pkg/logger"
	"github.com/dileepadev/blogsync/pkg/posts"
	"github.com/dileepadev/blogsync/pkg/presenter"
	"github.com/dileepadev/blogsync/pkg/telemetry"
)

// ErrSyncFailed is returned by Summary.Err when at least one post failed
var ErrSyncFailed = errors.New("one or more posts failed to sync")

// BlogAPI is the subset of the content API a run needs
type BlogAPI interface {
	ListBlogs(ctx context.Context) ([]blogapi.Record, error)
	SyncBlog(ctx context.Context, blog blogapi.SyncRequest) (*blogapi.SyncResponse, error)
}

// Syncer drives sync runs
type Syncer struct {
	api       BlogAPI
	cfg       *config.Config
	presenter presenter.Presenter
	runID     string
}

// Option configures a Syncer
type Option func(*Syncer)

// WithPresenter sets where user-facing progress is written
func WithPresenter(p presenter.Presenter) Option {
	return func(s *Syncer) {
		s.presenter = p
	}
}

// WithRunID sets the identifier logged with every line of the run
func WithRunID(id string) Option {
	return func(s *Syncer) {
		s.runID = id
	}
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// New creates a Syncer. cfg must already be validated.
func New(api BlogAPI, cfg *config.Config, opts ...Option) *Syncer {
	s := &Syncer{
		api:       api,
		cfg:       cfg,
		presenter: presenter.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID == "" {
		s.runID = NewRunID()
	}
	return s
}

// Result is the outcome of one post in a run
type Result struct {
	Entry
	// ID is the identifier returned by the API, if any
	ID string
}

// Summary is the outcome of a run
type Summary struct {
	RunID   string
	DryRun  bool
	Plan    *Plan
	Results []Result
	Synced  int
	Failed  int
	Skipped int
	// Planned counts the upserts a dry run would have made
	Planned int
}

// Counts returns the tally in presenter form
func (s *Summary) Counts() presenter.Counts {
	return presenter.Counts{Synced: s.Synced, Failed: s.Failed, Skipped: s.Skipped}
}

// Err aggregates every per-post failure. It returns nil when nothing failed.
func (s *Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}

	var result *multierror.Error
	for _, r := range s.Results {
		if r.Err != nil {
			result = multierror.Append(result, errors.Wrapf(r.Err, "%s", r.Filename))
		}
	}
	return errors.Wrap(multierror.Append(ErrSyncFailed, result.ErrorOrNil()).ErrorOrNil(), "sync failed")
}

// Run performs one full sync: discover, snapshot, plan, upsert, summarize.
// The returned error is only set for problems that stop the run before any
// post is processed; per-post failures are reported through Summary.Err.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	ctx = logger.WithFields(ctx, logrus.Fields{"run_id": s.runID})
	summary := &Summary{RunID: s.runID, DryRun: s.cfg.DryRun}

	s.presenter.Info(fmt.Sprintf("Reading blog posts from: %s", s.cfg.PostsDir))
	files, err := posts.Discover(s.cfg.PostsDir, s.cfg.Pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		s.presenter.Warning("No post files found. Nothing to sync.")
		return summary, nil
	}
	s.presenter.Info(fmt.Sprintf("Found %d blog post(s)", len(files)))

	snapshot := s.Snapshot(ctx)
	if snapshot.Err != nil {
		s.presenter.Warning(fmt.Sprintf("Could not fetch existing blogs, all posts are treated as new: %v", snapshot.Err))
	}
	s.presenter.Info(fmt.Sprintf("Existing blogs in API: %d (max index: %d)", snapshot.Len(), snapshot.MaxIndex()))

	plan := s.BuildPlan(ctx, files, snapshot)
	summary.Plan = plan

	if summary.DryRun {
		s.presenter.Section("Dry run: nothing is written")
	} else {
		s.presenter.Section("Syncing posts")
	}
	summary.Results = s.Apply(ctx, plan)

	for _, r := range summary.Results {
		switch {
		case r.Action == ActionSkip:
			summary.Skipped++
		case r.Err != nil:
			summary.Failed++
		case summary.DryRun:
			summary.Planned++
		default:
			summary.Synced++
		}
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"synced":  summary.Synced,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
		"planned": summary.Planned,
	}).Info("sync finished")

	return summary, nil
}

// Apply executes the plan. Indexes are fixed by the plan, so running upserts
// concurrently cannot change which post gets which index. Outcomes are
// reported in plan order as soon as every earlier entry has finished.
func (s *Syncer) Apply(ctx context.Context, plan *Plan) []Result {
	results := make([]Result, len(plan.Entries))
	done := make([]bool, len(plan.Entries))
	next := 0

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(s.concurrency())

	// finish records result i and reports every finished entry not yet shown
	finish := func(i int) {
		mu.Lock()
		defer mu.Unlock()
		done[i] = true
		for next < len(results) && done[next] {
			s.report(results[next])
			next++
		}
	}

	for i, entry := range plan.Entries {
		results[i] = Result{Entry: entry}

		if !entry.Writes() || s.cfg.DryRun {
			finish(i)
			continue
		}

		g.Go(func() error {
			id, err := s.upsert(ctx, entry)
			results[i].ID = id
			results[i].Err = err
			finish(i)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (s *Syncer) concurrency() int {
	if s.cfg.Concurrency < 1 {
		return 1
	}
	return s.cfg.Concurrency
}

func (s *Syncer) upsert(ctx context.Context, entry Entry) (string, error) {
	log := logger.G(ctx).WithFields(logrus.Fields{
		"file":  entry.Filename,
		"slug":  entry.Slug,
		"title": entry.Title,
		"index": entry.Index,
	})

	var id string
	err := telemetry.WithSpan(ctx, "blogsync.upsert", func(ctx context.Context) error {
		resp, err := s.api.SyncBlog(ctx, *entry.Request)
		if err != nil {
			return err
		}
		id = resp.ID
		return nil
	},
		attribute.String("post.slug", entry.Slug),
		attribute.Int("post.index", entry.Index),
		attribute.String("post.action", string(entry.Action)),
	)
	if err != nil {
		log.WithError(err).Error("failed to sync post")
		return "", err
	}

	log.WithField("id", id).Info("synced post")
	return id, nil
}

func (s *Syncer) report(r Result) {
	switch {
	case r.Action == ActionSkip:
		s.presenter.Warning(fmt.Sprintf("Skipping %s: %s", r.Filename, r.Reason))
	case r.Action == ActionError:
		s.presenter.Error(r.Err, fmt.Sprintf("Failed to read %s", r.Filename))
	case s.cfg.DryRun:
		s.presenter.Info(fmt.Sprintf("Would %s %q as index %d", r.Action, r.Title, r.Index))
	case r.Err != nil:
		var statusErr *blogapi.StatusError
		if errors.As(r.Err, &statusErr) {
			s.presenter.Error(r.Err, fmt.Sprintf("Failed to sync %q (%s, status %d)", r.Title, r.Filename, statusErr.StatusCode))
		} else {
			s.presenter.Error(r.Err, fmt.Sprintf("Network error syncing %q (%s)", r.Title, r.Filename))
		}
	default:
		id := r.ID
		if id == "" {
			id = "ok"
		}
		s.presenter.Success(fmt.Sprintf("Synced: %q → %s", r.Title, id))
	}
}
