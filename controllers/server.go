package controllers

import (
	"context"
	"log"
	"net/http"
	"os"

	"stylrapi/models"
	"stylrapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func SetupServer(
	db *gorm.DB,
	googleService services.GoogleServiceProvider,
	awsService services.AWSServiceProvider,
	urlCache services.URLCacheServiceProvider,
	stylist services.LLMStylist,
	firebaseApp *firebase.App,
	asynqClient *asynq.Client,
) *echo.Echo {

	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	authGroup := e.Group("auth")

	authController := AuthController{Google: googleService, FirebaseApp: firebaseApp}
	authController.ProfileRoutes(authGroup)

	closetController := ClosetController{AWSService: awsService, URLCache: urlCache, FirebaseApp: firebaseApp}
	closetGroup := e.Group("/closet", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)
	closetController.ClosetRoutes(closetGroup)

	outfitController := OutfitController{Stylist: stylist, Closet: &closetController}
	outfitGroup := e.Group("/outfits", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)
	outfitController.OutfitRoutes(outfitGroup)

	chatController := ChatController{Stylist: stylist}
	chatGroup := e.Group("/chat", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)
	chatController.ChatRoutes(chatGroup)

	searchController := SearchController{Stylist: stylist}
	searchGroup := e.Group("/search", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))), UserMiddleware)
	searchController.SearchRoutes(searchGroup)

	return e
}
