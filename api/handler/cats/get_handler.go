package cats

import (
	"net/http"

	"github.com/anoixa/cat-catalog/api/common"
	"github.com/anoixa/cat-catalog/database"
	"github.com/anoixa/cat-catalog/database/models"
	"github.com/gin-gonic/gin"
)

// GetCatHandler 获取单只猫咪
// @Summary      Get cat
// @Description  Get a cat by id, id must be between 1 and 150
// @Tags         cats
// @Produce      json
// @Param        id   path      int  true  "Cat ID"
// @Success      200  {object}  models.Cat
// @Failure      400  {object}  common.Response  "Invalid id"
// @Failure      404  {object}  common.Response  "Cat not found"
// @Failure      500  {object}  common.Response  "Store error or pool exhausted"
// @Router       /cat/{id} [get]
func (h *Handler) GetCatHandler(c *gin.Context) {
	var uri catURI
	if err := c.ShouldBindUri(&uri); err != nil {
		common.RespondAppError(c, common.NewValidationError("cats.get", invalidIDMessage))
		return
	}

	var cat *models.Cat
	err := h.withConn(c.Request.Context(), func(conn *database.Conn) error {
		var err error
		cat, err = h.repo.GetByID(conn, uri.ID)
		return err
	})
	if err != nil {
		common.RespondAppError(c, classify("cats.get", err))
		return
	}

	c.JSON(http.StatusOK, cat)
}
