package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/images"
)

func TestImages(t *testing.T) {
	env := newTestEnv(t, nil)

	imgServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("png bytes"))
	}))
	defer imgServer.Close()

	require.NoError(t, env.books.UpsertBook(&entities.Book{ID: "b2", Title: "Illustrated", CoverURL: imgServer.URL + "/cover.png"}))
	require.NoError(t, env.chapters.UpsertChapter(&entities.Chapter{
		ID: "i1", BookID: "b2", Title: "Pictures", Order: 1, Content: "Text.",
		Images: []entities.ChapterImage{{URL: imgServer.URL + "/one.png"}, {URL: imgServer.URL + "/gone.png"}},
	}))

	cache, err := images.NewCache(t.TempDir(), 0)
	require.NoError(t, err)
	router := NewRouter(RouterConfig{
		Books:       env.books,
		Chapters:    env.chapters,
		Preferences: env.prefs,
		Sessions:    env.manager,
		Images:      cache,
	})

	w := performRequest(router, http.MethodGet, "/api/books/b2/cover")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png bytes", w.Body.String())

	assert.Equal(t, http.StatusNotFound, performRequest(router, http.MethodGet, "/api/books/b1/cover").Code)
	assert.Equal(t, http.StatusNotFound, performRequest(router, http.MethodGet, "/api/books/none/cover").Code)

	w = performRequest(router, http.MethodGet, "/api/chapters/i1/images/0")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png bytes", w.Body.String())

	assert.Equal(t, http.StatusBadGateway, performRequest(router, http.MethodGet, "/api/chapters/i1/images/1").Code)
	assert.Equal(t, http.StatusNotFound, performRequest(router, http.MethodGet, "/api/chapters/i1/images/2").Code)
	assert.Equal(t, http.StatusBadRequest, performRequest(router, http.MethodGet, "/api/chapters/i1/images/x").Code)

	// without a cache the routes do not exist
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/books/b2/cover", nil).Code)
}
