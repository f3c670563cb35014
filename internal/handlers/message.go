package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	authmw "github.com/mxshop/backend/internal/middleware/auth"
	"github.com/mxshop/backend/internal/models"
)

// MessageHandler manages user leaving messages. Attachments are referenced
// by path only; files themselves are served statically.
type MessageHandler struct {
	DB *gorm.DB
}

type messageRequest struct {
	MessageType int    `json:"message_type"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	File        string `json:"file"`
}

func (h *MessageHandler) List(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var msgs []models.LeavingMessage
	if err := h.DB.Where("user_id = ?", userID).Order("id DESC").Find(&msgs).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *MessageHandler) Create(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	if req.MessageType < models.MessageTypeComment || req.MessageType > models.MessageTypeDemand {
		req.MessageType = models.MessageTypeComment
	}

	msg := models.LeavingMessage{
		UserID:      userID,
		MessageType: req.MessageType,
		Subject:     req.Subject,
		Body:        req.Message,
		File:        req.File,
	}
	if err := h.DB.Create(&msg).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) Delete(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	res := h.DB.Where("id = ? AND user_id = ?", id, userID).Delete(&models.LeavingMessage{})
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	return c.NoContent(http.StatusNoContent)
}
