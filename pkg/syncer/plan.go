package syncer

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dileepadev/blogsync/pkg/blogapi"
	"github.com/dileepadev/blogsync/pkg/logger"
	"github.com/dileepadev/blogsync/pkg/posts"
	"github.com/dileepadev/blogsync/pkg/telemetry"
)

// Action describes what a run does with one post file
type Action string

const (
	// ActionCreate upserts a slug the API does not know yet
	ActionCreate Action = "create"
	// ActionUpdate upserts a known slug, keeping its index
	ActionUpdate Action = "update"
	// ActionSkip leaves the file out; it is neither a success nor a failure
	ActionSkip Action = "skip"
	// ActionError marks a file that could not be read; it counts as a failure
	ActionError Action = "error"
)

// Entry is the planned outcome for one post file
type Entry struct {
	Filename string               `json:"file" yaml:"file"`
	Slug     string               `json:"slug" yaml:"slug"`
	Action   Action               `json:"action" yaml:"action"`
	Index    int                  `json:"index,omitempty" yaml:"index,omitempty"`
	Title    string               `json:"title,omitempty" yaml:"title,omitempty"`
	Tags     []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
	Words    int                  `json:"words,omitempty" yaml:"words,omitempty"`
	Reason   string               `json:"reason,omitempty" yaml:"reason,omitempty"`
	Request  *blogapi.SyncRequest `json:"-" yaml:"-"`
	Err      error                `json:"-" yaml:"-"`
}

// Writes reports whether the entry results in an upsert call
func (e Entry) Writes() bool {
	return e.Action == ActionCreate || e.Action == ActionUpdate
}

// Plan is the full set of decisions for a run, computed from one snapshot
// before any write happens
type Plan struct {
	Entries []Entry `json:"entries" yaml:"entries"`
	// Existing is the number of records in the snapshot
	Existing int `json:"existing" yaml:"existing"`
	// MaxIndex is the highest index in the snapshot
	MaxIndex int `json:"maxIndex" yaml:"maxIndex"`
	// NextIndex is the highest index after allocation
	NextIndex int `json:"nextIndex" yaml:"nextIndex"`
	// SnapshotErr is set when existing records could not be fetched
	SnapshotErr error `json:"-" yaml:"-"`
}

// Count returns how many entries have the given action
func (p *Plan) Count(action Action) int {
	n := 0
	for _, e := range p.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// Snapshot fetches the existing records once. A failed fetch is not fatal:
// the returned snapshot is empty and carries the error, so every local post
// is treated as new.
func (s *Syncer) Snapshot(ctx context.Context) *Snapshot {
	var records []blogapi.Record
	err := telemetry.WithSpan(ctx, "blogsync.snapshot", func(ctx context.Context) error {
		var err error
		records, err = s.api.ListBlogs(ctx)
		return err
	})
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to fetch existing blogs, treating all posts as new")
		snapshot := NewSnapshot(nil)
		snapshot.Err = err
		return snapshot
	}
	return NewSnapshot(records)
}

// BuildPlan assigns indexes to files in order. Files are processed in the
// given order, which must be the display order.
func (s *Syncer) BuildPlan(ctx context.Context, files []string, snapshot *Snapshot) *Plan {
	plan := &Plan{
		Entries:     make([]Entry, 0, len(files)),
		Existing:    snapshot.Len(),
		MaxIndex:    snapshot.MaxIndex(),
		SnapshotErr: snapshot.Err,
	}

	_ = telemetry.WithSpan(ctx, "blogsync.plan", func(ctx context.Context) error {
		allocator := NewAllocator(snapshot)
		seen := make(map[string]string, len(files))

		for _, filename := range files {
			entry := s.planFile(ctx, filename, allocator, seen)
			plan.Entries = append(plan.Entries, entry)
		}

		plan.NextIndex = allocator.Last()
		telemetry.SetAttributes(ctx,
			attribute.Int("plan.files", len(files)),
			attribute.Int("plan.max_index", plan.MaxIndex),
			attribute.Int("plan.next_index", plan.NextIndex),
		)
		return nil
	})

	return plan
}

func (s *Syncer) planFile(ctx context.Context, filename string, allocator *Allocator, seen map[string]string) Entry {
	entry := Entry{Filename: filename, Slug: posts.Slug(filename)}
	log := logger.G(ctx).WithFields(logrus.Fields{"file": filename, "slug": entry.Slug})

	post, err := posts.Load(filepath.Join(s.cfg.PostsDir, filename))
	switch {
	case errors.Is(err, posts.ErrNoFrontmatter), errors.Is(err, posts.ErrMissingTitle), isDecodeError(err):
		entry.Action = ActionSkip
		entry.Reason = "missing or invalid frontmatter: " + err.Error()
		log.WithError(err).Warn("skipping post")
		return entry
	case err != nil:
		entry.Action = ActionError
		entry.Reason = err.Error()
		entry.Err = err
		log.WithError(err).Error("failed to load post")
		return entry
	}

	entry.Title = post.Meta.Title
	entry.Tags = post.Meta.Tags
	entry.Words = post.WordCount()

	if other, dup := seen[post.Slug]; dup {
		entry.Action = ActionSkip
		entry.Reason = "duplicate slug, already provided by " + other
		log.WithField("other", other).Warn("skipping post with duplicate slug")
		return entry
	}
	seen[post.Slug] = filename

	index, isNew := allocator.Assign(post.Slug)
	entry.Index = index
	entry.Action = ActionUpdate
	if isNew {
		entry.Action = ActionCreate
	}

	req := BuildDTO(post, index, s.cfg.SiteURL)
	entry.Request = &req

	log.WithFields(logrus.Fields{"index": index, "action": entry.Action}).Debug("planned post")
	return entry
}

// isDecodeError reports whether err came from decoding frontmatter fields
// into post metadata, e.g. a list where a single value is expected
func isDecodeError(err error) bool {
	var decodeErr *posts.DecodeError
	return errors.As(err, &decodeErr)
}
