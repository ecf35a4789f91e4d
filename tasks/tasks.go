package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"stylrapi/models"
	"stylrapi/services"
	"stylrapi/store"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	TypeWardrobeClassifyBatch = "wardrobe:classify_batch"
	TypeDailyStyleTip         = "scheduled:daily_style_tip"
)

type WardrobeBatchPayload struct {
	BatchID uint `json:"batch_id"`
}

func NewWardrobeClassifyTask(batchID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(WardrobeBatchPayload{BatchID: batchID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWardrobeClassifyBatch, payload), nil
}

func NewDailyStyleTipTask() *asynq.Task {
	return asynq.NewTask(TypeDailyStyleTip, nil)
}

func downloadWardrobeFile(awsService services.AWSServiceProvider, batchID uint, fileKey string) ([]byte, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, fileKey)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Error on getting presigned URL for file %s", batchID, fileKey))
		return nil, err
	}
	fmt.Printf("[Batch: %v] Downloading... %s\n", batchID, fileKey)
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Error on downloading file %s: %v", batchID, fileKey, err))
		return nil, err
	}
	return fileBytes, nil
}

// classifyWardrobeFile runs one file through preparation and the Gemini
// classification call and stores the resulting item. Any failure belongs
// to this file only.
func classifyWardrobeFile(
	ctx context.Context, db *gorm.DB, stylist services.LLMStylist,
	awsService services.AWSServiceProvider, batch *models.WardrobeUploadBatch,
	fileKey string, model services.LLMModelName,
) error {
	fileBytes, err := downloadWardrobeFile(awsService, batch.ID, fileKey)
	if err != nil {
		return err
	}

	prepared, err := services.PrepareGarmentPhoto(fileBytes)
	if err != nil {
		// classify the original bytes when preparation chokes on the format
		fmt.Printf("[Batch: %v] Photo preparation failed for %s, classifying original: %v\n", batch.ID, fileKey, err)
		prepared = fileBytes
	}

	filePath, err := services.CreateTempFile(prepared, filepath.Base(fileKey))
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Error on creating temp file %s: %v", batch.ID, fileKey, err))
		return err
	}
	defer os.Remove(filePath)

	response, err := stylist.ClassifyClothing(ctx, filePath, model)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Error classifying %s: %v", batch.ID, fileKey, err))
		return err
	}
	if response == nil {
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Response is nil but no error provided classifying %s", batch.ID, fileKey))
		return fmt.Errorf("[Batch: %v] classification response is nil for %s", batch.ID, fileKey)
	}

	classification, parseErr := services.ParseClassification(response.Response)
	if parseErr != nil {
		// labels default to placeholders, the item is still stored
		fmt.Printf("[Batch: %v] Error on parsing Gemini %s AI json %s\n", batch.ID, model.String(), response.Response)
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Error on parsing classification json for %s: %v", batch.ID, fileKey, parseErr))
	}

	item := models.ClothingItem{
		ImageKey:    fileKey,
		Category:    classification.Category,
		Color:       classification.Color,
		Season:      pq.StringArray(classification.Season),
		Style:       pq.StringArray(classification.Style),
		Description: services.StrPointer(classification.Description),
	}
	wardrobe := store.NewWardrobeStore(db)
	if err := wardrobe.Add(batch.OwnerID, &item); err != nil {
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Error saving classified item for %s: %v", batch.ID, fileKey, err))
		return err
	}
	fmt.Printf("[Batch: %v] Classified %s as %s / %s, IT: %d, OT: %d, TT: %d\n",
		batch.ID, fileKey, classification.Category, classification.Color,
		response.InputTokenCount, response.OutputTokenCount, response.TotalTokenCount)
	return nil
}

// HandleWardrobeClassifyTask walks a batch file by file: one failed file
// is recorded and skipped, the rest keep going. A cancel request is
// honored between files, never mid-file.
func HandleWardrobeClassifyTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, stylist services.LLMStylist,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload()))
	}
	var payload WardrobeBatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Batch: %v] Start Processing\n", payload.BatchID)

	var batch models.WardrobeUploadBatch
	res := db.Joins("Owner").First(&batch, payload.BatchID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving batch for processing %v", payload.BatchID))
		return res.Error
	}
	if batch.Status == "cancelled" {
		fmt.Printf("[Batch: %v] Cancelled before processing started\n", payload.BatchID)
		return nil
	}

	model := services.Flash25
	if batch.Owner.EnforcedLLMModel != nil {
		model = services.LLMModelName(*batch.Owner.EnforcedLLMModel)
		fmt.Printf("[Batch: %v] [ENFORCE MODEL] Using enforced model: %s\n", payload.BatchID, model.String())
	}
	modelString := model.String()
	batch.Status = "processing"
	batch.LLMModel = &modelString
	if err := db.Save(&batch).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Error on saving batch status: %v", payload.BatchID, err))
		return err
	}

	cancelled := false
	for _, fileKey := range batch.FileKeys {
		// re-read status so a cancel lands between files
		var current models.WardrobeUploadBatch
		if err := db.Select("status").First(&current, batch.ID).Error; err == nil && current.Status == "cancelled" {
			fmt.Printf("[Batch: %v] Cancel requested, stopping after %d/%d files\n", payload.BatchID, batch.Processed, batch.Total)
			cancelled = true
			break
		}

		if err := classifyWardrobeFile(ctx, db, stylist, awsService, &batch, fileKey, model); err != nil {
			fmt.Printf("[Batch: %v] File failed, continuing: %s %v\n", payload.BatchID, fileKey, err)
			batch.FailedFiles = append(batch.FailedFiles, filepath.Base(fileKey))
		}

		batch.Processed++
		if err := db.Model(&models.WardrobeUploadBatch{}).Where("id = ?", batch.ID).Updates(map[string]interface{}{
			"processed":    batch.Processed,
			"failed_files": batch.FailedFiles,
		}).Error; err != nil {
			sentry.CaptureException(fmt.Errorf("[Batch: %v] Error on saving batch progress: %v", payload.BatchID, err))
		}
	}

	finalStatus := "completed"
	if cancelled {
		finalStatus = "cancelled"
	}
	updates := map[string]interface{}{"status": finalStatus}
	if !cancelled && len(batch.FailedFiles) == batch.Total {
		updates["error_message"] = "None of the uploaded photos could be processed"
	}
	if err := db.Model(&models.WardrobeUploadBatch{}).Where("id = ?", batch.ID).Updates(updates).Error; err != nil {
		sentry.CaptureException(fmt.Errorf("[Batch: %v] Error on saving batch final status: %v", payload.BatchID, err))
		return err
	}
	fmt.Printf("[Batch: %v] Finished: %s, %d/%d processed, %d failed\n", payload.BatchID, finalStatus, batch.Processed, batch.Total, len(batch.FailedFiles))

	if !cancelled && batch.Owner.ReceiveNotifications {
		added := batch.Processed - len(batch.FailedFiles)
		body := fmt.Sprintf("%d new items were added to your wardrobe", added)
		if len(batch.FailedFiles) > 0 {
			body = fmt.Sprintf("%d items added, %d photos could not be processed", added, len(batch.FailedFiles))
		}
		services.SendNotification(fbApp, db, batch.OwnerID, "Wardrobe updated", body, map[string]string{
			"batch_id": fmt.Sprintf("%d", batch.ID),
			"type":     "wardrobe_batch_done",
		})
	}
	return nil
}

// HandleDailyStyleTipTask fetches one short grounded tip and pushes it to
// everyone who opted in and actually has a wardrobe.
func HandleDailyStyleTipTask(ctx context.Context, t *asynq.Task, db *gorm.DB, stylist services.LLMStylist, fbApp *firebase.App) error {
	response, err := stylist.SearchGrounded(ctx, "Give one short, practical fashion styling tip for today. One or two sentences, no preamble.", services.Flash20)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error generating daily style tip: %v", err))
		return err
	}
	tip := services.CleanModelJSON(response.Response)
	if tip == "" {
		return fmt.Errorf("[QUEUE] empty daily style tip response")
	}

	var userIDs []uint
	result := db.Model(&models.UserAccount{}).
		Where("receive_notifications = true and banned = false").
		Where("id in (?)", db.Model(&models.ClothingItem{}).Select("distinct owner_id")).
		Limit(500).
		Pluck("id", &userIDs)
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error selecting users for daily style tip: %v", result.Error))
		return result.Error
	}
	fmt.Printf("[Tip] Sending daily style tip to %d users\n", len(userIDs))
	for _, userID := range userIDs {
		services.SendNotification(fbApp, db, userID, "Today's style tip", tip, map[string]string{"type": "daily_style_tip"})
	}
	return nil
}
