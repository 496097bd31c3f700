package samehadaku

type Genre struct {
	Title         string `json:"title"`
	GenreID       string `json:"genreId"`
	Href          string `json:"href"`
	SamehadakuURL string `json:"samehadakuUrl,omitempty"`
}

type Anime struct {
	Title         string  `json:"title"`
	Poster        string  `json:"poster"`
	Episodes      string  `json:"episodes,omitempty"`
	ReleasedOn    string  `json:"releasedOn,omitempty"`
	AnimeID       string  `json:"animeId"`
	Href          string  `json:"href"`
	SamehadakuURL string  `json:"samehadakuUrl,omitempty"`
	Type          string  `json:"type,omitempty"`
	Score         string  `json:"score,omitempty"`
	Status        string  `json:"status,omitempty"`
	GenreList     []Genre `json:"genreList,omitempty"`
	Estimation    string  `json:"estimation,omitempty"`
	Genres        string  `json:"genres,omitempty"`
}

// HasGenre reports whether title is one of the entry's genre titles.
func (a Anime) HasGenre(title string) bool {
	for _, g := range a.GenreList {
		if g.Title == title {
			return true
		}
	}
	return false
}

type Batch struct {
	Title         string `json:"title"`
	BatchID       string `json:"batchId"`
	Href          string `json:"href"`
	SamehadakuURL string `json:"samehadakuUrl"`
}

type Episode struct {
	Title         string `json:"title"`
	EpisodeID     string `json:"episodeId"`
	Href          string `json:"href"`
	SamehadakuURL string `json:"samehadakuUrl"`
	ReleasedOn    string `json:"releasedOn,omitempty"`
}

type AnimeDetail struct {
	Title       string    `json:"title"`
	Poster      string    `json:"poster"`
	Score       string    `json:"score"`
	Japanese    string    `json:"japanese"`
	Synonyms    string    `json:"synonyms"`
	English     string    `json:"english"`
	Status      string    `json:"status"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Duration    string    `json:"duration"`
	Episodes    string    `json:"episodes"`
	Season      string    `json:"season"`
	Studios     string    `json:"studios"`
	Producers   string    `json:"producers"`
	Aired       string    `json:"aired"`
	Trailer     string    `json:"trailer"`
	Synopsis    string    `json:"synopsis"`
	GenreList   []Genre   `json:"genreList"`
	BatchList   []Batch   `json:"batchList"`
	EpisodeList []Episode `json:"episodeList"`
}

type NumberedEpisode struct {
	Episode
	Number int
}

// EpisodesAsc lists episodes oldest first, numbered from 1. The upstream
// lists them newest first.
func (d AnimeDetail) EpisodesAsc() []NumberedEpisode {
	out := make([]NumberedEpisode, len(d.EpisodeList))
	for i, ep := range d.EpisodeList {
		j := len(d.EpisodeList) - 1 - i
		out[j] = NumberedEpisode{Episode: ep, Number: j + 1}
	}
	return out
}

// FirstEpisode returns the oldest episode, the last upstream entry.
func (d AnimeDetail) FirstEpisode() (Episode, bool) {
	if len(d.EpisodeList) == 0 {
		return Episode{}, false
	}
	return d.EpisodeList[len(d.EpisodeList)-1], true
}

type ServerLink struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

type Quality struct {
	Title      string       `json:"title"`
	ServerList []ServerLink `json:"serverList"`
}

type Server struct {
	Qualities []Quality `json:"qualities"`
}

type DownloadURL struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type EpisodeDetail struct {
	Title               string        `json:"title"`
	AnimeID             string        `json:"animeId"`
	Poster              string        `json:"poster"`
	ReleasedOn          string        `json:"releasedOn"`
	DefaultStreamingURL string        `json:"defaultStreamingUrl"`
	HasPrevEpisode      bool          `json:"hasPrevEpisode"`
	PrevEpisode         string        `json:"prevEpisode"`
	HasNextEpisode      bool          `json:"hasNextEpisode"`
	NextEpisode         string        `json:"nextEpisode"`
	Synopsis            string        `json:"synopsis"`
	GenreList           []Genre       `json:"genreList"`
	Server              Server        `json:"server"`
	DownloadURL         []DownloadURL `json:"downloadUrl"`
	RecommendedEpisodes []Anime       `json:"recommendedEpisodeList"`
}

type ScheduleDay struct {
	Day       string  `json:"day"`
	AnimeList []Anime `json:"animeList"`
}

type Section struct {
	Href          string  `json:"href"`
	SamehadakuURL string  `json:"samehadakuUrl"`
	AnimeList     []Anime `json:"animeList"`
}

type HomeData struct {
	Recent Section `json:"recent"`
	Batch  Section `json:"batch"`
	Movie  Section `json:"movie"`
	Top10  Section `json:"top10"`
}

type AnimeList struct {
	AnimeList []Anime `json:"animeList"`
}

type GenreList struct {
	GenreList []Genre `json:"genreList"`
}

type Schedule struct {
	Days []ScheduleDay `json:"days"`
}
