package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/storyreader/internal/preferences"
)

type PreferencesController struct {
	store PreferenceStore
}

func NewPreferencesController(store PreferenceStore) *PreferencesController {
	return &PreferencesController{store: store}
}

func (pc *PreferencesController) Get(c *gin.Context) {
	c.JSON(http.StatusOK, pc.store.Get())
}

// Update replaces all preferences. Open sessions pick the change up through
// their preference subscription.
func (pc *PreferencesController) Update(c *gin.Context) {
	var req preferences.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid preferences: "+err.Error())
		return
	}

	updated, err := pc.store.Update(req)
	if errors.Is(err, preferences.ErrInvalidPreferences) {
		respondBadRequest(c, err.Error())
		return
	}
	if err != nil {
		respondInternalError(c, err, "update preferences")
		return
	}
	c.JSON(http.StatusOK, updated)
}
