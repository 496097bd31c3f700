// Package listing implements the "load more" pagination used by list pages.
package listing

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

const (
	// PageSize is the upstream page length; a shorter page is the last one.
	PageSize = 12
	MaxPages = 10
)

type PageFunc func(ctx context.Context, page int) (*samehadaku.AnimeList, error)

type Result struct {
	Anime    []samehadaku.Anime
	Page     int
	HasMore  bool
	NextPage int
}

// ParsePage reads a ?page= value, clamped to [1, MaxPages].
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	if n > MaxPages {
		return MaxPages
	}
	return n
}

// Load fetches pages 1..page concurrently and concatenates them in order,
// which is what clicking "load more" page-1 times would have produced.
func Load(ctx context.Context, page int, fetch PageFunc) (*Result, error) {
	if page < 1 {
		page = 1
	}
	if page > MaxPages {
		page = MaxPages
	}

	pages := make([][]samehadaku.Anime, page)
	g, ctx := errgroup.WithContext(ctx)
	for i := range pages {
		g.Go(func() error {
			res, err := fetch(ctx, i+1)
			if err != nil {
				return err
			}
			pages[i] = res.AnimeList
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{Page: page}
	for _, p := range pages {
		out.Anime = append(out.Anime, p...)
	}
	out.HasMore = len(pages[page-1]) >= PageSize && page < MaxPages
	if out.HasMore {
		out.NextPage = page + 1
	}
	return out, nil
}
