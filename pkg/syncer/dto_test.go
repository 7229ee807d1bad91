package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileepadev/blogsync/pkg/blogapi"
	"github.com/dileepadev/blogsync/pkg/posts"
)

func TestBuildDTO(t *testing.T) {
	post, err := posts.Parse("hello-world.mdx", `---
title: Hello World
description: "A first post"
publishedDate: 2024-02-29
banner: /images/hello.webp
tags: [a, b]
---
body
`)
	require.NoError(t, err)

	dto := BuildDTO(post, 7, "https://blog.dileepa.dev")

	assert.Equal(t, "hello-world", dto.Slug)
	assert.Equal(t, 7, dto.Index)
	assert.Equal(t, "Hello World", dto.Title)
	require.NotNil(t, dto.Date)
	assert.Equal(t, "2024-02-29", *dto.Date)
	require.NotNil(t, dto.Excerpt)
	assert.Equal(t, "A first post", *dto.Excerpt)
	assert.Equal(t, "https://blog.dileepa.dev/blog/hello-world", dto.Link)
	assert.Equal(t, "https://blog.dileepa.dev/images/hello.webp", dto.BannerURL)
}

func TestBuildDTOWithoutOptionalFields(t *testing.T) {
	post, err := posts.Parse("minimal.mdx", "---\ntitle: Minimal\n---\n")
	require.NoError(t, err)

	dto := BuildDTO(post, 1, "https://example.org")

	assert.Nil(t, dto.Date)
	assert.Nil(t, dto.Excerpt)
	assert.Empty(t, dto.BannerURL)
	assert.Equal(t, "https://example.org/blog/minimal", dto.Link)
}

func TestAllocator(t *testing.T) {
	snapshot := NewSnapshot([]blogapi.Record{
		{Slug: "a", Index: 3},
		{Slug: "b", Index: 5},
		{Slug: "unindexed"},
	})
	assert.Equal(t, 3, snapshot.Len())
	assert.Equal(t, 5, snapshot.MaxIndex())

	alloc := NewAllocator(snapshot)

	idx, isNew := alloc.Assign("b")
	assert.Equal(t, 5, idx)
	assert.False(t, isNew)

	idx, isNew = alloc.Assign("x")
	assert.Equal(t, 6, idx)
	assert.True(t, isNew)

	idx, isNew = alloc.Assign("a")
	assert.Equal(t, 3, idx)
	assert.False(t, isNew)

	idx, isNew = alloc.Assign("unindexed")
	assert.Equal(t, 7, idx)
	assert.True(t, isNew)

	assert.Equal(t, 7, alloc.Last())
}

func TestEmptySnapshotStartsAtOne(t *testing.T) {
	alloc := NewAllocator(NewSnapshot(nil))

	first, _ := alloc.Assign("first")
	second, _ := alloc.Assign("second")
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestSnapshotDuplicateSlugLastWins(t *testing.T) {
	snapshot := NewSnapshot([]blogapi.Record{
		{Slug: "dup", Index: 2},
		{Slug: "dup", Index: 8},
	})

	r, ok := snapshot.Lookup("dup")
	require.True(t, ok)
	assert.Equal(t, 8, r.Index)
	assert.Equal(t, 1, snapshot.Len())
	assert.Equal(t, 8, snapshot.MaxIndex())
}
