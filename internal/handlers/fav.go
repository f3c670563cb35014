package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	authmw "github.com/mxshop/backend/internal/middleware/auth"
	"github.com/mxshop/backend/internal/models"
)

// FavHandler manages user favorites. The fav_num counter on the product is
// maintained right here at the mutation site, not by storage-layer hooks.
type FavHandler struct {
	DB *gorm.DB
}

func (h *FavHandler) List(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var favs []models.UserFav
	if err := h.DB.Where("user_id = ?", userID).Order("id ASC").Find(&favs).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, favs)
}

func (h *FavHandler) Add(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var req struct {
		ProductID uint `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	fav := models.UserFav{UserID: userID, ProductID: req.ProductID}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&fav).Error; err != nil {
			return err
		}
		return tx.Model(&models.Product{}).Where("id = ?", req.ProductID).
			Update("fav_num", gorm.Expr("fav_num + 1")).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, "already favorited")
	}
	return c.JSON(http.StatusCreated, fav)
}

func (h *FavHandler) Remove(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	productID, err := strconv.Atoi(c.Param("id"))
	if err != nil || productID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.UserFav{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Product{}).Where("id = ?", productID).
			Update("fav_num", gorm.Expr("fav_num - 1")).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "favorite not found")
	}
	return c.NoContent(http.StatusNoContent)
}
