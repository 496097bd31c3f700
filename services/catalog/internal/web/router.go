package web

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nimestream/nimestream/services/catalog/internal/bookmarks"
	"github.com/nimestream/nimestream/services/catalog/internal/logging"
	"github.com/nimestream/nimestream/services/catalog/internal/metrics"
	"github.com/nimestream/nimestream/services/catalog/internal/samehadaku"
)

//go:embed templates/*.html
var templatesFS embed.FS

const defaultTimeout = 30 * time.Second

type Deps struct {
	Catalog   samehadaku.Fetcher
	Bookmarks *bookmarks.Store
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// Location decides which schedule day counts as today.
	Location *time.Location
	// Timeout bounds each upstream call made while serving a request.
	Timeout time.Duration
	Now     func() time.Time
}

type handler struct {
	catalog   samehadaku.Fetcher
	api       *samehadaku.API
	bookmarks *bookmarks.Store
	logger    *zap.Logger
	loc       *time.Location
	timeout   time.Duration
	now       func() time.Time
}

func NewRouter(d Deps) *gin.Engine {
	h := &handler{
		catalog:   d.Catalog,
		api:       samehadaku.NewAPI(d.Catalog),
		bookmarks: d.Bookmarks,
		logger:    d.Logger,
		loc:       d.Location,
		timeout:   d.Timeout,
		now:       d.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.timeout <= 0 {
		h.timeout = defaultTimeout
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Requests(h.logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
	}))

	r.SetHTMLTemplate(template.Must(template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")))

	api := r.Group("/api")
	{
		sh := api.Group("/samehadaku")
		for _, p := range []string{"home", "recent", "popular", "ongoing", "completed", "movies", "search", "schedule", "genres"} {
			sh.GET("/"+p, h.proxy(staticPath("/samehadaku/"+p)))
		}
		sh.GET("/genres/:genreId", h.proxy(func(c *gin.Context) string { return samehadaku.GenrePath(c.Param("genreId")) }))
		sh.GET("/anime/:animeId", h.proxy(func(c *gin.Context) string { return samehadaku.AnimePath(c.Param("animeId")) }))
		sh.GET("/episode/:episodeId", h.proxy(func(c *gin.Context) string { return samehadaku.EpisodePath(c.Param("episodeId")) }))

		api.GET("/health", h.health)
	}

	pages := r.Group("/", h.visitor)
	{
		pages.GET("/", h.home)
		pages.GET("/search", h.search)
		pages.GET("/anime", h.animeList(""))
		pages.GET("/anime/:animeId", h.detail)
		pages.GET("/episode/:episodeId", h.episode)
		pages.GET("/genre", h.genre)
		pages.GET("/genre/:genreId", h.genre)
		pages.GET("/schedule", h.schedule)
		pages.GET("/bookmarks", h.bookmarkList)
		pages.GET("/recent", h.recent)
		pages.GET("/developer", h.developer)
		pages.GET("/popular", h.animeList("popular"))
		pages.GET("/movies", h.animeList("movies"))
		pages.GET("/batch", h.animeList(""))

		pages.POST("/bookmarks/:animeId/toggle", h.toggleBookmark)
		pages.POST("/bookmarks/:animeId/delete", h.deleteBookmark)
		pages.POST("/preferences/theme", h.toggleTheme)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		h.render(c, http.StatusNotFound, "error.html", "Tidak ditemukan", gin.H{
			"Message": "Halaman tidak ditemukan",
		})
	})

	return r
}

func staticPath(p string) func(*gin.Context) string {
	return func(*gin.Context) string { return p }
}
