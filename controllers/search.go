package controllers

import (
	"fmt"
	"net/http"
	"net/url"

	"stylrapi/models"
	"stylrapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
)

type SearchController struct {
	Stylist services.LLMStylist
}

type SearchIn struct {
	Query string `json:"query" validate:"required,max=500"`
}

// SearchSource is one cited web source, with the hostname split out so
// clients can show "fashionweekly.com" style labels next to the link.
type SearchSource struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Hostname string `json:"hostname"`
}

type SearchOut struct {
	Answer  string         `json:"answer"`
	Sources []SearchSource `json:"sources"`
}

func sourceHostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func (controller *SearchController) SearchRoutes(g *echo.Group) {
	g.POST("", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)

		var req SearchIn
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		response, err := controller.Stylist.SearchGrounded(c.Request().Context(), req.Query, userModel(user))
		if err != nil {
			fmt.Println("Error on grounded search", err)
			sentry.CaptureException(err)
			return c.JSON(http.StatusBadGateway, echo.Map{
				"message": "Search is unavailable right now, please try again",
			})
		}

		sources := []SearchSource{}
		for _, grounding := range response.GroundingSources {
			sources = append(sources, SearchSource{
				Title:    grounding.Title,
				URL:      grounding.URL,
				Hostname: sourceHostname(grounding.URL),
			})
		}
		return c.JSON(http.StatusOK, SearchOut{
			Answer:  response.Response,
			Sources: sources,
		})
	})
}
