package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"stylrapi/models"
	"stylrapi/services"
	"stylrapi/store"
	"stylrapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type ClosetController struct {
	AWSService  services.AWSServiceProvider
	URLCache    services.URLCacheServiceProvider
	FirebaseApp *firebase.App
}

const maxBatchFiles = 10

// itemOut maps a stored item onto the wire shape, attaching a presigned
// read URL when the cache can produce one. A presign failure never fails
// the listing, the uri just stays empty.
func (controller *ClosetController) itemOut(ctx context.Context, item models.ClothingItem) models.ClothingItemOut {
	out := models.ClothingItemOut{
		ID:          item.ItemID,
		Category:    item.Category,
		Color:       item.Color,
		Season:      item.Season,
		Style:       item.Style,
		Description: item.Description,
		CreatedAt:   item.CreatedAtMs,
	}
	if out.Season == nil {
		out.Season = []string{}
	}
	if out.Style == nil {
		out.Style = []string{}
	}
	if item.ImageKey != "" && controller.URLCache != nil {
		url, err := controller.URLCache.GetReadURL(ctx, item.ImageKey)
		if err != nil {
			log.Printf("Failed to get presigned URL for key '%s': %v", item.ImageKey, err)
			sentry.CaptureException(err)
		} else if url != "" {
			out.Uri = &url
		}
	}
	return out
}

func (controller *ClosetController) itemsOut(ctx context.Context, items []models.ClothingItem) []models.ClothingItemOut {
	outs := []models.ClothingItemOut{}
	for _, item := range items {
		outs = append(outs, controller.itemOut(ctx, item))
	}
	return outs
}

func (controller *ClosetController) ClosetRoutes(g *echo.Group) {
	g.GET("/list", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		wardrobe := store.NewWardrobeStore(db)

		items, err := wardrobe.Load(user.ID)
		if err != nil {
			fmt.Println("Error loading wardrobe", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, models.WardrobeListOut{
			Items: controller.itemsOut(c.Request().Context(), items),
		})
	})

	g.POST("/create", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		wardrobe := store.NewWardrobeStore(db)

		var req models.CreateClothingIn
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if !services.IsAllowedImageName(*req.FileName) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unsupported image file type"})
		}

		bucketName := services.GetEnv("R2_BUCKET_NAME", "")
		safeFileName := fmt.Sprintf("wardrobe/%v/%s-%s", user.ID, uuid.NewString(), *req.FileName)
		uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
		if presignErr != nil {
			log.Printf("Unable to presign upload for %s!, %s", user.Name, presignErr)
			sentry.CaptureException(presignErr)
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"message": "Error while uploading your photo, please try again",
			})
		}

		item := models.ClothingItem{
			ImageKey:    safeFileName,
			Category:    req.Category,
			Color:       req.Color,
			Description: req.Description,
		}
		if err := wardrobe.Add(user.ID, &item); err != nil {
			fmt.Println("Error saving clothing item", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}

		return c.JSON(http.StatusOK, models.ClothingCreatedOut{
			Item:          controller.itemOut(c.Request().Context(), item),
			FileUploadUrl: uploadUrl,
		})
	})

	g.DELETE("/:itemId", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		wardrobe := store.NewWardrobeStore(db)

		itemID := c.Param("itemId")
		err := wardrobe.Remove(user.ID, itemID)
		if err != nil {
			fmt.Println("Error removing clothing item", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "deleted",
			"id":      itemID,
		})
	})

	g.POST("/import", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		wardrobe := store.NewWardrobeStore(db)

		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.ErrBadRequest
		}
		imported, err := wardrobe.Import(user.ID, raw)
		if errors.Is(err, store.ErrMalformedImport) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"message": "Your wardrobe export could not be read",
			})
		}
		if err != nil {
			fmt.Println("Error importing wardrobe", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}

		items, err := wardrobe.Load(user.ID)
		if err != nil {
			fmt.Println("Error loading wardrobe after import", err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"imported": imported,
			"items":    controller.itemsOut(c.Request().Context(), items),
		})
	})

	g.POST("/upload", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
		if !ok || asynqClient == nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
		}

		var req models.UploadBatchIn
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if len(req.FileNames) > maxBatchFiles {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("At most %d photos per upload", maxBatchFiles)})
		}
		for _, fileName := range req.FileNames {
			if !services.IsAllowedImageName(fileName) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unsupported image file type: %s", fileName)})
			}
		}

		if user.EnforcedDailyUploadLimit != nil {
			var todayCount int64
			db.Model(&models.WardrobeUploadBatch{}).Where(
				"owner_id = ? and created_at > now() - interval '1 day'", user.ID,
			).Count(&todayCount)
			if todayCount >= int64(*user.EnforcedDailyUploadLimit) {
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"message": "Daily upload limit reached, please try again tomorrow",
				})
			}
		}

		batch := models.WardrobeUploadBatch{
			OwnerID: user.ID,
			Total:   len(req.FileNames),
			Status:  "pending",
		}
		if err := db.Create(&batch).Error; err != nil {
			fmt.Println("Error creating upload batch", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}

		bucketName := services.GetEnv("R2_BUCKET_NAME", "")
		uploadTargets := map[string]string{}
		fileKeys := pq.StringArray{}
		for _, fileName := range req.FileNames {
			safeFileName := fmt.Sprintf("wardrobe/%v/batch-%v/%s", user.ID, batch.ID, fileName)
			uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
			if presignErr != nil {
				log.Printf("Unable to presign batch upload for %s!, %s", user.Name, presignErr)
				sentry.CaptureException(presignErr)
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"message": "Error while preparing your upload, please try again",
				})
			}
			fileKeys = append(fileKeys, safeFileName)
			uploadTargets[fileName] = uploadUrl
		}
		batch.FileKeys = fileKeys
		if err := db.Save(&batch).Error; err != nil {
			fmt.Println("Error saving upload batch keys", err)
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}

		task, err := tasks.NewWardrobeClassifyTask(batch.ID)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process upload, please try again"})
		}
		// give the client time to PUT the files before the worker starts
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"), asynq.ProcessIn(45*time.Second))
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process upload, please try again"})
		}
		fmt.Printf("[Queue] Classify batch %v task submitted, User ID: %v Task ID %v\n", batch.ID, user.ID, info.ID)

		return c.JSON(http.StatusOK, models.UploadBatchOut{
			BatchID:       batch.ID,
			Status:        batch.Status,
			UploadTargets: uploadTargets,
		})
	})

	g.GET("/upload/:batchId", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		var batchId uint
		if err := echo.PathParamsBinder(c).Uint("batchId", &batchId).BindError(); err != nil {
			return echo.ErrBadRequest
		}

		var batch models.WardrobeUploadBatch
		result := db.Where("id = ? and owner_id = ?", batchId, user.ID).First(&batch)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return echo.ErrNotFound
		}
		if result.Error != nil {
			fmt.Println("Error loading upload batch", result.Error)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, models.UploadBatchProgressOut{
			BatchID:     batch.ID,
			Status:      batch.Status,
			Processed:   batch.Processed,
			Total:       batch.Total,
			FailedFiles: batch.FailedFiles,
		})
	})

	g.POST("/upload/:batchId/cancel", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		var batchId uint
		if err := echo.PathParamsBinder(c).Uint("batchId", &batchId).BindError(); err != nil {
			return echo.ErrBadRequest
		}

		// already finished batches stay finished, cancel only bites while
		// the worker is still between files
		result := db.Model(&models.WardrobeUploadBatch{}).Where(
			"id = ? and owner_id = ? and status in ('pending', 'processing')", batchId, user.ID,
		).Update("status", "cancelled")
		if result.Error != nil {
			fmt.Println("Error cancelling upload batch", result.Error)
			sentry.CaptureException(result.Error)
			return echo.ErrInternalServerError
		}
		if result.RowsAffected == 0 {
			var batch models.WardrobeUploadBatch
			r := db.Where("id = ? and owner_id = ?", batchId, user.ID).First(&batch)
			if errors.Is(r.Error, gorm.ErrRecordNotFound) {
				return echo.ErrNotFound
			}
			return c.JSON(http.StatusConflict, echo.Map{
				"message": "Upload already finished",
				"status":  batch.Status,
			})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "cancelled",
			"status":  "cancelled",
		})
	})
}
