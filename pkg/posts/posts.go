// Package posts discovers blog post files in a content directory and loads
// their frontmatter into typed metadata.
package posts

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/dileepadev/blogsync/pkg/frontmatter"
)

// DefaultPattern matches MDX posts
const DefaultPattern = "*.mdx"

var (
	// ErrNoFrontmatter is returned when a post has no header block
	ErrNoFrontmatter = errors.New("missing frontmatter")
	// ErrMissingTitle is returned when the header block has no usable title
	ErrMissingTitle = errors.New("missing title")
)

// Meta holds the frontmatter fields the sync cares about
type Meta struct {
	Title         string   `mapstructure:"title"`
	PublishedDate *string  `mapstructure:"publishedDate"`
	Description   *string  `mapstructure:"description"`
	Banner        string   `mapstructure:"banner"`
	Tags          []string `mapstructure:"tags"`
}

// Post is a loaded content file
type Post struct {
	Filename    string
	Path        string
	Slug        string
	Meta        Meta
	Frontmatter frontmatter.Frontmatter
	Body        string
}

// WordCount returns the number of whitespace separated words in the body
func (p *Post) WordCount() int {
	return len(strings.Fields(p.Body))
}

// Slug derives a post slug from its filename by dropping the extension
func Slug(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Discover returns the names of the files in dir matching pattern, sorted
// lexicographically. Post filenames are expected to sort in display order.
func Discover(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.Errorf("invalid post pattern %q", pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read posts directory %s", dir)
	}

	var files []string
	for _, entry := range entries {
		matched, err := doublestar.Match(pattern, entry.Name())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to match %s", entry.Name())
		}
		if !matched {
			continue
		}
		// symlinks are followed; a dangling one is kept so loading reports it
		if info, err := os.Stat(filepath.Join(dir, entry.Name())); err == nil && !info.Mode().IsRegular() {
			continue
		}
		files = append(files, entry.Name())
	}

	sort.Strings(files)
	return files, nil
}

// Load reads and parses the post at path
func Load(path string) (*Post, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read post %s", path)
	}

	post, err := Parse(filepath.Base(path), string(content))
	if err != nil {
		return nil, err
	}
	post.Path = path
	return post, nil
}

// Parse builds a Post from a filename and its raw content
func Parse(filename, content string) (*Post, error) {
	_, body, ok := frontmatter.Split(content)
	if !ok {
		return nil, ErrNoFrontmatter
	}
	fm, _ := frontmatter.Parse(content)

	if _, ok := fm.String("title"); !ok {
		return nil, ErrMissingTitle
	}

	meta, err := DecodeMeta(fm)
	if err != nil {
		return nil, err
	}
	if meta.Title == "" {
		return nil, ErrMissingTitle
	}

	return &Post{
		Filename:    filename,
		Slug:        Slug(filename),
		Meta:        meta,
		Frontmatter: fm,
		Body:        body,
	}, nil
}

// DecodeMeta maps frontmatter fields onto Meta. A scalar tags value becomes a
// one-element list.
func DecodeMeta(fm frontmatter.Frontmatter) (Meta, error) {
	var meta Meta
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Meta{}, errors.Wrap(err, "failed to create frontmatter decoder")
	}

	if err := decoder.Decode(fm.Map()); err != nil {
		return Meta{}, &DecodeError{Err: err}
	}

	return meta, nil
}

// DecodeError reports frontmatter fields that do not fit Meta, such as a
// list given for banner
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode frontmatter: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
