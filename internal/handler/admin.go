package handler

import (
	"OceanBooks/internal/dto"
	"OceanBooks/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminStats returns catalog totals.
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.svc.AdminStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AdminLogin checks the admin credential sent as form fields.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.Fail(c, http.StatusBadRequest, "Missing credentials")
		return
	}
	if err := h.svc.AdminLogin(c.Request.Context(), req.Username, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Login successful!")
}
