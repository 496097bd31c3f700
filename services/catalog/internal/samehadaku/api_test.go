package samehadaku

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	path  string
	query url.Values
	body  string
	err   error
}

func (s *stubFetcher) Fetch(_ context.Context, path string, query url.Values) (*Response, error) {
	s.path = path
	s.query = query
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Status: 200, Body: []byte(s.body)}, nil
}

func TestAPIHome(t *testing.T) {
	f := &stubFetcher{body: `{"status":"success","data":{
		"recent":{"href":"/samehadaku/recent","animeList":[{"title":"A","animeId":"a","episodes":"12"}]},
		"top10":{"animeList":[{"title":"B","animeId":"b","score":"8.1"}]},
		"movie":{"animeList":[]},
		"batch":{"animeList":[{"title":"C","animeId":"c"}]}
	}}`}

	home, err := NewAPI(f).Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PathHome, f.path)
	assert.Nil(t, f.query)

	want := HomeData{
		Recent: Section{Href: "/samehadaku/recent", AnimeList: []Anime{{Title: "A", AnimeID: "a", Episodes: "12"}}},
		Top10:  Section{AnimeList: []Anime{{Title: "B", AnimeID: "b", Score: "8.1"}}},
		Movie:  Section{AnimeList: []Anime{}},
		Batch:  Section{AnimeList: []Anime{{Title: "C", AnimeID: "c"}}},
	}
	if diff := cmp.Diff(want, *home); diff != "" {
		t.Errorf("Home() mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIListPaths(t *testing.T) {
	tests := []struct {
		name string
		call func(a *API) error
		path string
		page string
	}{
		{"recent", func(a *API) error { _, err := a.Recent(context.Background(), 2); return err }, PathRecent, "2"},
		{"popular", func(a *API) error { _, err := a.Popular(context.Background(), 1); return err }, PathPopular, "1"},
		{"ongoing", func(a *API) error { _, err := a.Ongoing(context.Background(), 0); return err }, PathOngoing, "1"},
		{"completed", func(a *API) error { _, err := a.Completed(context.Background(), 3); return err }, PathCompleted, "3"},
		{"movies", func(a *API) error { _, err := a.Movies(context.Background(), 1); return err }, PathMovies, "1"},
		{"genre", func(a *API) error { _, err := a.GenreAnime(context.Background(), "action", 4); return err }, "/samehadaku/genres/action", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stubFetcher{body: `{"data":{"animeList":[]}}`}
			require.NoError(t, tt.call(NewAPI(f)))
			assert.Equal(t, tt.path, f.path)
			assert.Equal(t, tt.page, f.query.Get("page"))
		})
	}
}

func TestAPISearch(t *testing.T) {
	f := &stubFetcher{body: `{"data":{"animeList":[{"title":"Naruto","animeId":"naruto","status":"Completed","type":"TV","genreList":[{"title":"Action","genreId":"action"}]}]}}`}

	res, err := NewAPI(f).Search(context.Background(), "naruto", 1)
	require.NoError(t, err)
	assert.Equal(t, PathSearch, f.path)
	assert.Equal(t, "naruto", f.query.Get("q"))
	require.Len(t, res.AnimeList, 1)
	assert.True(t, res.AnimeList[0].HasGenre("Action"))
	assert.False(t, res.AnimeList[0].HasGenre("Drama"))
}

func TestAPIEpisode(t *testing.T) {
	f := &stubFetcher{body: `{"data":{
		"title":"Ep 1","animeId":"x","defaultStreamingUrl":"https://v/default",
		"hasNextEpisode":true,"nextEpisode":"x-ep-2",
		"server":{"qualities":[{"title":"480p","serverList":[{"title":"A","href":"https://v/a"}]}]},
		"downloadUrl":[{"title":"MP4","url":"https://d/1"}],
		"recommendedEpisodeList":[{"title":"Y","animeId":"y"}]
	}}`}

	ep, err := NewAPI(f).Episode(context.Background(), "x-ep-1")
	require.NoError(t, err)
	assert.Equal(t, "/samehadaku/episode/x-ep-1", f.path)
	assert.Equal(t, "https://v/default", ep.DefaultStreamingURL)
	assert.True(t, ep.HasNextEpisode)
	assert.False(t, ep.HasPrevEpisode)
	require.Len(t, ep.Server.Qualities, 1)
	assert.Equal(t, "https://v/a", ep.Server.Qualities[0].ServerList[0].Href)
	assert.Equal(t, "MP4", ep.DownloadURL[0].Title)
	assert.Equal(t, "y", ep.RecommendedEpisodes[0].AnimeID)
}

func TestAPIDetailFirstEpisode(t *testing.T) {
	f := &stubFetcher{body: `{"data":{"title":"X","episodeList":[{"episodeId":"x-3"},{"episodeId":"x-2"},{"episodeId":"x-1"}]}}`}

	d, err := NewAPI(f).Detail(context.Background(), "x")
	require.NoError(t, err)
	first, ok := d.FirstEpisode()
	require.True(t, ok)
	assert.Equal(t, "x-1", first.EpisodeID)

	_, ok = AnimeDetail{}.FirstEpisode()
	assert.False(t, ok)

	want := []NumberedEpisode{
		{Episode: Episode{EpisodeID: "x-1"}, Number: 1},
		{Episode: Episode{EpisodeID: "x-2"}, Number: 2},
		{Episode: Episode{EpisodeID: "x-3"}, Number: 3},
	}
	if diff := cmp.Diff(want, d.EpisodesAsc()); diff != "" {
		t.Errorf("EpisodesAsc mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, AnimeDetail{}.EpisodesAsc())
}

func TestAPIPropagatesErrors(t *testing.T) {
	upstream := &StatusError{Status: 503}
	_, err := NewAPI(&stubFetcher{err: upstream}).Schedule(context.Background())
	assert.True(t, errors.Is(err, upstream))

	_, err = NewAPI(&stubFetcher{body: `not json`}).Genres(context.Background())
	assert.ErrorContains(t, err, "decode /samehadaku/genres")
}
