package samehadaku

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

const prefix = "/samehadaku"

// Upstream endpoint paths.
const (
	PathHome      = prefix + "/home"
	PathRecent    = prefix + "/recent"
	PathPopular   = prefix + "/popular"
	PathOngoing   = prefix + "/ongoing"
	PathCompleted = prefix + "/completed"
	PathMovies    = prefix + "/movies"
	PathSearch    = prefix + "/search"
	PathSchedule  = prefix + "/schedule"
	PathGenres    = prefix + "/genres"
)

func GenrePath(genreID string) string {
	return PathGenres + "/" + url.PathEscape(genreID)
}

func AnimePath(animeID string) string {
	return prefix + "/anime/" + url.PathEscape(animeID)
}

func EpisodePath(episodeID string) string {
	return prefix + "/episode/" + url.PathEscape(episodeID)
}

// API decodes upstream envelopes into typed payloads.
type API struct {
	f Fetcher
}

func NewAPI(f Fetcher) *API {
	return &API{f: f}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func get[T any](ctx context.Context, f Fetcher, path string, query url.Values) (*T, error) {
	resp, err := f.Fetch(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var env envelope[T]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &env.Data, nil
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}

func (a *API) Home(ctx context.Context) (*HomeData, error) {
	return get[HomeData](ctx, a.f, PathHome, nil)
}

// List fetches one page of a category list such as PathOngoing.
func (a *API) List(ctx context.Context, path string, page int) (*AnimeList, error) {
	return get[AnimeList](ctx, a.f, path, pageQuery(page))
}

func (a *API) Recent(ctx context.Context, page int) (*AnimeList, error) {
	return a.List(ctx, PathRecent, page)
}

func (a *API) Popular(ctx context.Context, page int) (*AnimeList, error) {
	return a.List(ctx, PathPopular, page)
}

func (a *API) Ongoing(ctx context.Context, page int) (*AnimeList, error) {
	return a.List(ctx, PathOngoing, page)
}

func (a *API) Completed(ctx context.Context, page int) (*AnimeList, error) {
	return a.List(ctx, PathCompleted, page)
}

func (a *API) Movies(ctx context.Context, page int) (*AnimeList, error) {
	return a.List(ctx, PathMovies, page)
}

func (a *API) Search(ctx context.Context, q string, page int) (*AnimeList, error) {
	query := pageQuery(page)
	query.Set("q", q)
	return get[AnimeList](ctx, a.f, PathSearch, query)
}

func (a *API) Detail(ctx context.Context, animeID string) (*AnimeDetail, error) {
	return get[AnimeDetail](ctx, a.f, AnimePath(animeID), nil)
}

func (a *API) Episode(ctx context.Context, episodeID string) (*EpisodeDetail, error) {
	return get[EpisodeDetail](ctx, a.f, EpisodePath(episodeID), nil)
}

func (a *API) Genres(ctx context.Context) (*GenreList, error) {
	return get[GenreList](ctx, a.f, PathGenres, nil)
}

func (a *API) GenreAnime(ctx context.Context, genreID string, page int) (*AnimeList, error) {
	return a.List(ctx, GenrePath(genreID), page)
}

func (a *API) Schedule(ctx context.Context) (*Schedule, error) {
	return get[Schedule](ctx, a.f, PathSchedule, nil)
}
