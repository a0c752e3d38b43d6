package cats

import (
	"net/http"

	"github.com/anoixa/cat-catalog/api/common"
	"github.com/anoixa/cat-catalog/database"
	"github.com/anoixa/cat-catalog/database/models"
	"github.com/gin-gonic/gin"
)

// ListCatsHandler 获取猫咪列表
// @Summary      List cats
// @Description  Returns at most 100 cats ordered by id
// @Tags         cats
// @Produce      json
// @Success      200  {array}   models.Cat
// @Failure      500  {object}  common.Response  "Store error or pool exhausted"
// @Router       /cats [get]
func (h *Handler) ListCatsHandler(c *gin.Context) {
	var cats []*models.Cat
	err := h.withConn(c.Request.Context(), func(conn *database.Conn) error {
		var err error
		cats, err = h.repo.List(conn, h.listLimit)
		return err
	})
	if err != nil {
		common.RespondAppError(c, classify("cats.list", err))
		return
	}

	if cats == nil {
		cats = []*models.Cat{}
	}
	c.JSON(http.StatusOK, cats)
}
