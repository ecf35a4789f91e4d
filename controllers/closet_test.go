package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"stylrapi/dbhelper"
	"stylrapi/models"
	"stylrapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userPk(user *models.UserAccount) string {
	return strconv.FormatUint(uint64(user.ID), 10)
}

func TestListWardrobeEmpty(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("GET", "/closet/list", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "Expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	var response models.WardrobeListOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotNil(t, response.Items)
	assert.Len(t, response.Items, 0)
}

func TestListWardrobeOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{MockUrl: "https://read.example/signed"}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")
	test.FakeClothingItem(db, user.ID, "item-2", "Bottom", "Black")

	req := test.NewJSONAuthRequest("GET", "/closet/list", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.WardrobeListOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Items, 2)
	require.NotNil(t, response.Items[0].Uri)
	assert.Equal(t, "https://read.example/signed", *response.Items[0].Uri)
	assert.NotNil(t, response.Items[0].Season)
}

func TestListWardrobeUnauthorized(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)

	req := test.NewJSONRequest("GET", "/closet/list", "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateClothingOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	reqBody := models.CreateClothingIn{
		FileName: StrPointer("jacket.jpg"),
		Category: "Outerwear",
		Color:    "Green",
	}
	req := test.NewJSONAuthRequest("POST", "/closet/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "Expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	var response models.ClothingCreatedOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Item.ID)
	assert.Equal(t, "Outerwear", response.Item.Category)
	assert.Contains(t, response.FileUploadUrl, "https://fakebucketurl.com/")
	assert.Contains(t, response.FileUploadUrl, "jacket.jpg")

	var count int64
	db.Model(&models.ClothingItem{}).Where("owner_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateClothingDefaultsLabels(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	reqBody := models.CreateClothingIn{FileName: StrPointer("mystery.png")}
	req := test.NewJSONAuthRequest("POST", "/closet/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.ClothingCreatedOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "Unknown", response.Item.Category)
	assert.Equal(t, "Unknown", response.Item.Color)
}

func TestCreateClothingBadExtension(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	reqBody := models.CreateClothingIn{FileName: StrPointer("malware.exe")}
	req := test.NewJSONAuthRequest("POST", "/closet/create", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateClothingMissingFileName(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/closet/create", userPk(user), models.CreateClothingIn{Category: "Top"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteClothingOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)
	test.FakeClothingItem(db, user.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("DELETE", "/closet/item-1", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var count int64
	db.Model(&models.ClothingItem{}).Where("owner_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestDeleteClothingAbsentIsNoOp(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("DELETE", "/closet/no-such-item", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteClothingOtherUsersItem(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	owner := test.FakeUser(db)
	other := test.FakeUserV2(db, "Other", "other@example.com")
	test.FakeClothingItem(db, owner.ID, "item-1", "Top", "Blue")

	req := test.NewJSONAuthRequest("DELETE", "/closet/item-1", userPk(other), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// scoped to the caller, the owner's item survives
	assert.Equal(t, http.StatusOK, rec.Code)
	var count int64
	db.Model(&models.ClothingItem{}).Where("owner_id = ?", owner.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestImportWardrobeOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	raw := `[{"id": "imp-1", "category": "Top", "color": "Red"}, {"category": "Bottom"}]`
	req := test.NewJSONAuthRequestRaw("POST", "/closet/import", userPk(user), raw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "Expected 200 OK, got %d: %s", rec.Code, rec.Body.String())
	var response struct {
		Imported int                      `json:"imported"`
		Items    []models.ClothingItemOut `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Imported)
	assert.Len(t, response.Items, 2)
}

func TestImportWardrobeMalformed(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequestRaw("POST", "/closet/import", userPk(user), "not a json document")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadBatchBadExtension(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	reqBody := models.UploadBatchIn{FileNames: []string{"ok.jpg", "nope.pdf"}}
	req := test.NewJSONAuthRequest("POST", "/closet/upload", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "nope.pdf")
}

func TestUploadBatchTooManyFiles(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	fileNames := []string{}
	for i := 0; i < 11; i++ {
		fileNames = append(fileNames, fmt.Sprintf("photo-%d.jpg", i))
	}
	req := test.NewJSONAuthRequest("POST", "/closet/upload", userPk(user), models.UploadBatchIn{FileNames: fileNames})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadBatchDailyLimit(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)
	db.Model(&models.UserAccount{}).Where("id = ?", user.ID).Update("enforced_daily_upload_limit", 1)
	db.Create(&models.WardrobeUploadBatch{OwnerID: user.ID, Total: 1, Status: "completed"})

	reqBody := models.UploadBatchIn{FileNames: []string{"photo.jpg"}}
	req := test.NewJSONAuthRequest("POST", "/closet/upload", userPk(user), reqBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestUploadBatchProgress(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	batch := models.WardrobeUploadBatch{
		OwnerID:     user.ID,
		Total:       5,
		Processed:   3,
		FailedFiles: []string{"blurry.jpg"},
		Status:      "processing",
	}
	require.NoError(t, db.Create(&batch).Error)

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/closet/upload/%v", batch.ID), userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.UploadBatchProgressOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, batch.ID, response.BatchID)
	assert.Equal(t, "processing", response.Status)
	assert.Equal(t, 3, response.Processed)
	assert.Equal(t, 5, response.Total)
	assert.Equal(t, []string{"blurry.jpg"}, response.FailedFiles)
}

func TestUploadBatchProgressNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("GET", "/closet/upload/999999", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelUploadBatchOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	batch := models.WardrobeUploadBatch{OwnerID: user.ID, Total: 3, Status: "processing"}
	require.NoError(t, db.Create(&batch).Error)

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/closet/upload/%v/cancel", batch.ID), userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.WardrobeUploadBatch
	require.NoError(t, db.First(&updated, batch.ID).Error)
	assert.Equal(t, "cancelled", updated.Status)
}

func TestCancelUploadBatchAlreadyFinished(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	batch := models.WardrobeUploadBatch{OwnerID: user.ID, Total: 3, Processed: 3, Status: "completed"}
	require.NoError(t, db.Create(&batch).Error)

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/closet/upload/%v/cancel", batch.ID), userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var updated models.WardrobeUploadBatch
	require.NoError(t, db.First(&updated, batch.ID).Error)
	assert.Equal(t, "completed", updated.Status)
}

func TestCancelUploadBatchNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	e := SetupServer(db, test.GoogleServiceMock{}, &test.AWSProviderMock{}, &test.URLCacheMock{}, &test.MockStylist{}, nil, nil)
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/closet/upload/424242/cancel", userPk(user), "")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
