package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"stylrapi/models"
	"stylrapi/services"
	"stylrapi/store"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type OutfitController struct {
	Stylist services.LLMStylist
	Closet  *ClosetController
}

func userModel(user models.UserAccount) services.LLMModelName {
	if user.EnforcedLLMModel != nil {
		return services.LLMModelName(*user.EnforcedLLMModel)
	}
	return services.Flash25
}

func (controller *OutfitController) OutfitRoutes(g *echo.Group) {
	g.POST("/generate", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		wardrobe := store.NewWardrobeStore(db)

		var req models.GenerateOutfitIn
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if strings.TrimSpace(req.Occasion) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Occasion is required"})
		}

		// an empty wardrobe is rejected here, the stylist is never called
		itemCount, err := wardrobe.ItemCount(user.ID)
		if err != nil {
			fmt.Println("Error counting wardrobe items", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		if itemCount == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"message": "Add some items to your wardrobe first",
			})
		}

		inventoryJSON, err := wardrobe.InventoryJSON(user.ID)
		if err != nil {
			fmt.Println("Error serializing wardrobe", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}

		response, err := controller.Stylist.GenerateOutfit(c.Request().Context(), req.Occasion, req.Notes, inventoryJSON, userModel(user))
		if err != nil {
			fmt.Println("Error generating outfit", err)
			sentry.CaptureException(err)
			if strings.Contains(err.Error(), "content violation") {
				return c.JSON(http.StatusUnprocessableEntity, echo.Map{
					"message": "Sorry, we cannot generate an outfit for this request",
				})
			}
			return c.JSON(http.StatusBadGateway, echo.Map{
				"message": "The stylist is unavailable right now, please try again",
			})
		}

		card, err := services.NormalizeOutfitPayload([]byte(services.CleanModelJSON(response.Response)))
		if errors.Is(err, services.ErrMalformedPayload) {
			fmt.Printf("[Outfit] Unparseable stylist payload for user %v: %q\n", user.ID, response.Response)
			sentry.CaptureException(err)
			return c.JSON(http.StatusBadGateway, echo.Map{
				"message": "The stylist reply could not be read, please try again",
			})
		}
		if err != nil {
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		if card == nil {
			// parseable but nothing displayable: the client renders nothing
			return c.JSON(http.StatusOK, echo.Map{"card": nil})
		}

		resolved, err := wardrobe.ResolveItems(user.ID, card.SelectedItemIDs)
		if err != nil {
			fmt.Println("Error resolving outfit items", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, models.OutfitCardOut{
			Card:          *card,
			ResolvedItems: controller.Closet.itemsOut(c.Request().Context(), resolved),
		})
	})

	g.POST("/favorite", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		wardrobe := store.NewWardrobeStore(db)

		var req models.ToggleFavoriteIn
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if strings.TrimSpace(req.Card.ID) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Card id is required"})
		}

		favorited, err := wardrobe.ToggleFavorite(user.ID, req.Card)
		if err != nil {
			fmt.Println("Error toggling favorite", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, models.ToggleFavoriteOut{
			OutfitID:  req.Card.ID,
			Favorited: favorited,
		})
	})

	g.GET("/favorites", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		wardrobe := store.NewWardrobeStore(db)

		cards, err := wardrobe.Favorites(user.ID)
		if err != nil {
			fmt.Println("Error loading favorites", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}

		favorites := []models.OutfitCardOut{}
		for _, card := range cards {
			resolved, err := wardrobe.ResolveItems(user.ID, card.SelectedItemIDs)
			if err != nil {
				fmt.Println("Error resolving favorite items", err)
				sentry.CaptureException(err)
				return echo.ErrInternalServerError
			}
			favorites = append(favorites, models.OutfitCardOut{
				Card:          card,
				ResolvedItems: controller.Closet.itemsOut(c.Request().Context(), resolved),
			})
		}
		return c.JSON(http.StatusOK, models.FavoritesListOut{Favorites: favorites})
	})
}
