package web

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/nimestream/nimestream/services/catalog/internal/bookmarks"
	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

type card struct {
	Anime       samehadaku.Anime
	ShowEpisode bool
	ShowRating  bool
}

var funcs = template.FuncMap{
	"card": func(a samehadaku.Anime, showEpisode, showRating bool) card {
		return card{Anime: a, ShowEpisode: showEpisode, ShowRating: showRating}
	},
	"bookmarkCard": func(b bookmarks.Bookmark) card {
		return card{
			Anime: samehadaku.Anime{
				AnimeID: b.AnimeID,
				Title:   b.Title,
				Poster:  b.Poster,
				Score:   b.Score,
				Status:  b.Status,
				Type:    b.Type,
			},
			ShowRating: true,
		}
	},
	"pathEscape": url.PathEscape,
	"lower":      strings.ToLower,
	"episodeURL": episodeURL,
}
