package syncer

import (
	"github.com/dileepadev/blogsync/pkg/blogapi"
	"github.com/dileepadev/blogsync/pkg/posts"
)

// BuildDTO maps a post onto the upsert body expected by the content API.
// siteURL must not end with a slash.
func BuildDTO(post *posts.Post, index int, siteURL string) blogapi.SyncRequest {
	bannerURL := ""
	if post.Meta.Banner != "" {
		bannerURL = siteURL + post.Meta.Banner
	}

	return blogapi.SyncRequest{
		Slug:      post.Slug,
		Index:     index,
		Title:     post.Meta.Title,
		Date:      post.Meta.PublishedDate,
		Excerpt:   post.Meta.Description,
		Link:      siteURL + "/blog/" + post.Slug,
		BannerURL: bannerURL,
	}
}
