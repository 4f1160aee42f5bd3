package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/storyreader/internal/progress"
)

type ProgressController struct {
	reporter PositionReporter
}

func NewProgressController(reporter PositionReporter) *ProgressController {
	return &ProgressController{reporter: reporter}
}

// Report records a scroll position. The write happens in the background.
func (pc *ProgressController) Report(c *gin.Context) {
	var pos progress.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		respondBadRequest(c, "invalid position: "+err.Error())
		return
	}
	if pos.ItemIndex < 0 || pos.TotalItems < 0 {
		respondBadRequest(c, "item_index and total_items must not be negative")
		return
	}

	pc.reporter.Report(pos)
	respondAccepted(c, "Position recorded", nil)
}
