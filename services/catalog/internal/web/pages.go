package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nimestream/nimestream/services/catalog/internal/bookmarks"
	"github.com/nimestream/nimestream/services/catalog/internal/listing"
	"github.com/nimestream/nimestream/services/catalog/internal/player"
	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

type category struct {
	ID    string
	Label string
	Path  string
}

var categories = []category{
	{"ongoing", "Sedang Tayang", samehadaku.PathOngoing},
	{"completed", "Tamat", samehadaku.PathCompleted},
	{"popular", "Populer", samehadaku.PathPopular},
	{"movies", "Movie", samehadaku.PathMovies},
}

var quickGenres = []string{"Action", "Adventure", "Comedy", "Drama", "Fantasy", "Romance"}

var (
	searchGenres = []string{
		"Action", "Adventure", "Comedy", "Drama", "Fantasy",
		"Horror", "Isekai", "Magic", "Romance", "School",
		"Sci-Fi", "Slice of Life", "Sports", "Supernatural",
	}
	searchStatuses = []string{"Ongoing", "Completed"}
	searchTypes    = []string{"TV", "Movie", "OVA", "Special"}
)

// scheduleDays is the tab order; weekdayNames is indexed by time.Weekday.
var (
	scheduleDays = []string{"Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu", "Minggu"}
	weekdayNames = []string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
)

type section struct {
	Title       string
	Anime       []samehadaku.Anime
	More        string
	ShowEpisode bool
	ShowRating  bool
}

func (h *handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *handler) render(c *gin.Context, status int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Dark"] = darkMode(c)
	data["Return"] = c.Request.URL.RequestURI()
	data["Nav"] = c.Request.URL.Path
	c.HTML(status, name, data)
}

// fail renders the error page, using 404 when the upstream said so.
func (h *handler) fail(c *gin.Context, err error, message string) {
	status := http.StatusBadGateway
	var se *samehadaku.StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		status = http.StatusNotFound
	}
	h.logger.Warn(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
	_ = c.Error(err)
	h.render(c, status, "error.html", "Terjadi kesalahan", gin.H{
		"Message": message,
		"Retry":   c.Request.URL.RequestURI(),
	})
}

func (h *handler) home(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	home, err := h.api.Home(ctx)
	if err != nil {
		h.fail(c, err, "Failed to load home data")
		return
	}

	banner := home.Recent.AnimeList
	if len(banner) > 5 {
		banner = banner[:5]
	}
	h.render(c, http.StatusOK, "home.html", "NimeStream", gin.H{
		"Banner": banner,
		"Sections": []section{
			{"Episode Terbaru", home.Recent.AnimeList, "/recent", true, false},
			{"Anime Populer", home.Top10.AnimeList, "/popular", false, true},
			{"Anime Movie", home.Movie.AnimeList, "/movies", false, true},
			{"Batch Anime", home.Batch.AnimeList, "/batch", false, true},
		},
	})
}

type searchFilter struct {
	Genre  string
	Status string
	Type   string
}

func (f searchFilter) Active() bool {
	return f.Genre != "" || f.Status != "" || f.Type != ""
}

func (f searchFilter) apply(list []samehadaku.Anime) []samehadaku.Anime {
	out := make([]samehadaku.Anime, 0, len(list))
	for _, a := range list {
		if f.Genre != "" && !a.HasGenre(f.Genre) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (h *handler) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	filter := searchFilter{
		Genre:  c.Query("genre"),
		Status: c.Query("status"),
		Type:   c.Query("type"),
	}

	var results []samehadaku.Anime
	if q != "" {
		ctx, cancel := h.ctx(c)
		defer cancel()
		res, err := h.api.Search(ctx, q, 1)
		if err != nil {
			h.logger.Warn("Search error", zap.String("q", q), zap.Error(err))
		} else {
			results = filter.apply(res.AnimeList)
		}
	}

	h.render(c, http.StatusOK, "search.html", "Cari anime", gin.H{
		"Query":    q,
		"Filter":   filter,
		"Results":  results,
		"Genres":   searchGenres,
		"Statuses": searchStatuses,
		"Types":    searchTypes,
	})
}

func (h *handler) detail(c *gin.Context) {
	id := c.Param("animeId")
	ctx, cancel := h.ctx(c)
	defer cancel()

	anime, err := h.api.Detail(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to load anime details")
		return
	}

	bookmarked, err := h.bookmarks.IsBookmarked(ctx, visitorID(c), id)
	if err != nil {
		h.logger.Warn("bookmark lookup failed", zap.String("anime", id), zap.Error(err))
	}

	data := gin.H{
		"ID":         id,
		"Anime":      anime,
		"Bookmarked": bookmarked,
	}
	if first, ok := anime.FirstEpisode(); ok {
		data["Watch"] = first.EpisodeID
	}
	h.render(c, http.StatusOK, "detail.html", anime.Title, data)
}

func (h *handler) episode(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	ep, err := h.api.Episode(ctx, c.Param("episodeId"))
	if err != nil {
		h.fail(c, err, "Failed to load episode")
		return
	}

	h.render(c, http.StatusOK, "episode.html", ep.Title, gin.H{
		"ID":      c.Param("episodeId"),
		"Episode": ep,
		"Player":  player.Select(ep, c.Query("quality"), c.Query("server")),
	})
}

func (h *handler) genre(c *gin.Context) {
	genreID := c.Param("genreId")
	ctx, cancel := h.ctx(c)
	defer cancel()

	var genres []samehadaku.Genre
	if gl, err := h.api.Genres(ctx); err != nil {
		h.logger.Warn("Failed to fetch genres", zap.Error(err))
	} else {
		genres = gl.GenreList
	}

	title := "Semua Genre"
	for _, g := range genres {
		if g.GenreID == genreID {
			title = g.Title
			break
		}
	}

	data := gin.H{
		"GenreID": genreID,
		"Genres":  genres,
	}
	if genreID != "" {
		page := listing.ParsePage(c.Query("page"))
		res, err := listing.Load(ctx, page, func(ctx context.Context, page int) (*samehadaku.AnimeList, error) {
			return h.api.GenreAnime(ctx, genreID, page)
		})
		if err != nil {
			h.logger.Warn("Failed to fetch anime by genre", zap.String("genre", genreID), zap.Error(err))
		} else {
			data["List"] = res
			data["More"] = moreURL(c, res)
		}
	}
	h.render(c, http.StatusOK, "genre.html", title, data)
}

type scheduleEntry struct {
	Day   string
	Anime []samehadaku.Anime
	More  int
}

func (h *handler) schedule(c *gin.Context) {
	day := c.Query("day")
	known := false
	for _, d := range scheduleDays {
		if d == day {
			known = true
			break
		}
	}
	if !known {
		day = weekdayNames[h.now().In(h.loc).Weekday()]
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	data := gin.H{
		"Days":     scheduleDays,
		"Selected": day,
	}
	sched, err := h.api.Schedule(ctx)
	if err != nil {
		h.logger.Warn("Failed to fetch schedule", zap.Error(err))
	} else {
		data["Current"] = samehadaku.ScheduleDay{Day: day}
		var week []scheduleEntry
		for _, d := range sched.Days {
			if d.Day == day {
				data["Current"] = d
			}
			e := scheduleEntry{Day: d.Day, Anime: d.AnimeList}
			if len(e.Anime) > 5 {
				e.More = len(e.Anime) - 5
				e.Anime = e.Anime[:5]
			}
			week = append(week, e)
		}
		data["Week"] = week
	}
	h.render(c, http.StatusOK, "schedule.html", "Jadwal Rilis", data)
}

// animeList serves the category list. A fixed category comes from the
// route (/popular, /movies); otherwise ?category= picks one, defaulting
// to ongoing.
func (h *handler) animeList(fixed string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := fixed
		if id == "" {
			id = c.Query("category")
		}
		cat := categories[0]
		for _, cand := range categories {
			if cand.ID == id {
				cat = cand
				break
			}
		}

		ctx, cancel := h.ctx(c)
		defer cancel()

		data := gin.H{
			"Categories":  categories,
			"Category":    cat,
			"QuickGenres": quickGenres,
		}
		res, err := listing.Load(ctx, listing.ParsePage(c.Query("page")), func(ctx context.Context, page int) (*samehadaku.AnimeList, error) {
			return h.api.List(ctx, cat.Path, page)
		})
		if err != nil {
			h.logger.Warn("Failed to fetch anime", zap.String("category", cat.ID), zap.Error(err))
		} else {
			data["List"] = res
			data["More"] = moreURL(c, res)
		}
		h.render(c, http.StatusOK, "list.html", "Daftar Anime", data)
	}
}

func (h *handler) recent(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	data := gin.H{}
	res, err := listing.Load(ctx, listing.ParsePage(c.Query("page")), h.api.Recent)
	if err != nil {
		h.logger.Warn("Failed to fetch recent", zap.Error(err))
	} else {
		data["List"] = res
		data["More"] = moreURL(c, res)
	}
	h.render(c, http.StatusOK, "recent.html", "Episode Terbaru", data)
}

func (h *handler) bookmarkList(c *gin.Context) {
	list, err := h.bookmarks.List(c.Request.Context(), visitorID(c))
	if err != nil {
		h.logger.Error("list bookmarks failed", zap.Error(err))
		_ = c.Error(err)
		h.render(c, http.StatusInternalServerError, "error.html", "Terjadi kesalahan", gin.H{
			"Message": "Gagal memuat favorit",
		})
		return
	}
	h.render(c, http.StatusOK, "bookmarks.html", "Anime Favorit", gin.H{
		"Bookmarks": list,
	})
}

func (h *handler) toggleBookmark(c *gin.Context) {
	b := bookmarks.Bookmark{
		AnimeID: c.Param("animeId"),
		Title:   c.PostForm("title"),
		Poster:  c.PostForm("poster"),
		Status:  c.PostForm("status"),
		Type:    c.PostForm("type"),
		Score:   c.PostForm("score"),
	}
	if _, err := h.bookmarks.Toggle(c.Request.Context(), visitorID(c), b); err != nil {
		h.logger.Error("toggle bookmark failed", zap.String("anime", b.AnimeID), zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Redirect(http.StatusSeeOther, returnPath(c.PostForm("return")))
}

func (h *handler) deleteBookmark(c *gin.Context) {
	id := c.Param("animeId")
	if err := h.bookmarks.Remove(c.Request.Context(), visitorID(c), id); err != nil {
		h.logger.Error("remove bookmark failed", zap.String("anime", id), zap.Error(err))
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	back := c.PostForm("return")
	if back == "" {
		back = "/bookmarks"
	}
	c.Redirect(http.StatusSeeOther, returnPath(back))
}

func (h *handler) developer(c *gin.Context) {
	h.render(c, http.StatusOK, "developer.html", "Developer", nil)
}

// episodeURL builds the player link for a quality tab or server button.
func episodeURL(episodeID, quality, server string) string {
	q := url.Values{}
	if quality != "" {
		q.Set("quality", quality)
	}
	if server != "" {
		q.Set("server", server)
	}
	u := "/episode/" + url.PathEscape(episodeID)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// moreURL is the current URL with page advanced, or "" on the last page.
func moreURL(c *gin.Context, res *listing.Result) string {
	if !res.HasMore {
		return ""
	}
	q := c.Request.URL.Query()
	q.Set("page", strconv.Itoa(res.NextPage))
	return c.Request.URL.Path + "?" + q.Encode()
}
