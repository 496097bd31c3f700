// Package player decides what the episode page embeds.
package player

import "github.com/nimestream/nimestream/services/catalog/internal/samehadaku"

type Selection struct {
	// Quality is the active quality tab, empty when the episode has none.
	Quality string
	// Server is the href of the active server within Quality.
	Server string
	// Src is the iframe source, empty when nothing is playable.
	Src string

	Qualities []samehadaku.Quality
	Servers   []samehadaku.ServerLink
}

func (s Selection) Playable() bool {
	return s.Src != ""
}

// Select picks the quality and server for an episode. Unknown quality titles
// fall back to the first quality; server hrefs are only honoured when they
// belong to the chosen quality, so arbitrary URLs are never embedded.
func Select(ep *samehadaku.EpisodeDetail, quality, server string) Selection {
	sel := Selection{Qualities: ep.Server.Qualities}

	if len(ep.Server.Qualities) > 0 {
		q := ep.Server.Qualities[0]
		for _, cand := range ep.Server.Qualities {
			if cand.Title == quality {
				q = cand
				break
			}
		}
		sel.Quality = q.Title
		sel.Servers = q.ServerList

		if len(q.ServerList) > 0 {
			sel.Server = q.ServerList[0].Href
			for _, s := range q.ServerList {
				if server != "" && s.Href == server {
					sel.Server = s.Href
					break
				}
			}
		}
	}

	switch {
	case sel.Server != "":
		sel.Src = sel.Server
	case ep.DefaultStreamingURL != "":
		sel.Src = ep.DefaultStreamingURL
	}
	return sel
}
