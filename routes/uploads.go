package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"teamops-server/models"
	"teamops-server/storage"
	"teamops-server/utils"

	"github.com/kataras/iris/v12"
)

const (
	reservationTTL = 10 * time.Minute
	uploadGrantTTL = 10 * time.Minute
	viewGrantTTL   = 2 * time.Minute

	defaultMaxUploadBytes = 25 << 20

	// DeliverableFolder is the client-facing asset namespace with the broader
	// mime allow-list; everything else uses the chat-attachment list.
	DeliverableFolder = "deliverables"
	defaultFolder     = "uploads"
)

var chatAttachmentMimes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"text/plain":      true,
}

var deliverableMimes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/svg+xml":   true,
	"application/pdf": true,
	"application/zip": true,
	"text/plain":      true,
	"text/csv":        true,
	"video/mp4":       true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
}

func allowedMime(folder, mimeType string) bool {
	if folder == DeliverableFolder {
		return deliverableMimes[mimeType]
	}
	return chatAttachmentMimes[mimeType]
}

func maxUploadBytes() int64 {
	if v := os.Getenv("UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultMaxUploadBytes
}

// uploadReservation is what reserve records in Redis under the storage key.
// It expires on its own; an abandoned reserve leaves no trace here.
type uploadReservation struct {
	ID        string `json:"id"`
	UserID    uint   `json:"userID"`
	Folder    string `json:"folder"`
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

func reservationKey(storageKey string) string {
	return "upload:resv:" + storageKey
}

type reserveUploadInput struct {
	FileName  string `json:"fileName" validate:"required,lt=256"`
	MimeType  string `json:"mimeType" validate:"required,lt=128"`
	SizeBytes int64  `json:"sizeBytes" validate:"required,gt=0"`
	Folder    string `json:"folder" validate:"omitempty,oneof=uploads deliverables"`
}

// ReserveUpload validates the intended file and hands back a storage key plus
// a time-boxed grant bound to that key and content type. No database row is
// created: the key is a reservation only.
func ReserveUpload(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}

	var input reserveUploadInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if input.SizeBytes > maxUploadBytes() {
		utils.JSONError(ctx, http.StatusRequestEntityTooLarge, utils.ErrPayloadRejected, "file exceeds the maximum upload size")
		return
	}
	folder := input.Folder
	if folder == "" {
		folder = defaultFolder
	}
	if !allowedMime(folder, input.MimeType) {
		utils.JSONError(ctx, http.StatusUnsupportedMediaType, utils.ErrPayloadRejected, "file type is not allowed")
		return
	}

	key := storage.BuildStorageKey(claims.ID, folder, input.FileName)

	grant, err := storage.SignUpload(key, input.MimeType, uploadGrantTTL)
	if err != nil {
		utils.JSONError(ctx, http.StatusServiceUnavailable, utils.ErrStorageUnavailable, "object storage is not available")
		return
	}

	resv := uploadReservation{
		ID:        utils.GenerateShortToken(8),
		UserID:    claims.ID,
		Folder:    folder,
		FileName:  storage.SanitizeFileName(input.FileName),
		MimeType:  input.MimeType,
		SizeBytes: input.SizeBytes,
	}
	payload, _ := json.Marshal(resv)
	if err := storage.Redis.Set(ctx.Request().Context(), reservationKey(key), payload, reservationTTL).Err(); err != nil {
		utils.JSONError(ctx, http.StatusServiceUnavailable, utils.ErrStorageUnavailable, "could not record upload reservation")
		return
	}

	ctx.JSON(iris.Map{"success": true, "storageKey": key, "grant": grant})
}

type ownerRef struct {
	Type string `json:"type" validate:"required,oneof=task message"`
	ID   uint   `json:"id" validate:"required"`
}

type confirmUploadInput struct {
	StorageKey string   `json:"storageKey" validate:"required,lt=512"`
	FileName   string   `json:"fileName" validate:"required,lt=256"`
	MimeType   string   `json:"mimeType" validate:"required,lt=128"`
	SizeBytes  int64    `json:"sizeBytes" validate:"required,gt=0"`
	Owner      ownerRef `json:"owner"`
}

// ConfirmUpload turns a completed upload into a Media row. The storage key
// must have been reserved by the same caller, the metadata is re-validated,
// and the caller is re-authorized against the owning resource.
func ConfirmUpload(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}

	var input confirmUploadInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	raw, err := storage.Redis.Get(ctx.Request().Context(), reservationKey(input.StorageKey)).Result()
	if err != nil {
		utils.Validation(ctx, "storage key was not reserved or the reservation expired")
		return
	}
	var resv uploadReservation
	if err := json.Unmarshal([]byte(raw), &resv); err != nil {
		utils.Internal(ctx)
		return
	}
	if resv.UserID != claims.ID {
		utils.Validation(ctx, "storage key was not reserved or the reservation expired")
		return
	}

	if input.SizeBytes > maxUploadBytes() || input.SizeBytes != resv.SizeBytes {
		utils.JSONError(ctx, http.StatusRequestEntityTooLarge, utils.ErrPayloadRejected, "file size does not match the reservation")
		return
	}
	if input.MimeType != resv.MimeType || !allowedMime(resv.Folder, input.MimeType) {
		utils.JSONError(ctx, http.StatusUnsupportedMediaType, utils.ErrPayloadRejected, "file type does not match the reservation")
		return
	}

	media := models.Media{
		StorageKey: input.StorageKey,
		FileName:   storage.SanitizeFileName(input.FileName),
		MimeType:   input.MimeType,
		SizeBytes:  input.SizeBytes,
		UploaderID: claims.ID,
	}

	switch input.Owner.Type {
	case models.MediaOwnerMessage:
		var message models.Message
		if err := storage.DB.First(&message, input.Owner.ID).Error; err != nil || message.Deleted() {
			utils.NotFound(ctx, "message not found")
			return
		}
		if !canTouchMessageAttachment(&message, claims) {
			utils.Forbidden(ctx, "not allowed to attach to this message")
			return
		}
		media.MessageID = &message.ID
	case models.MediaOwnerTask:
		var task models.Task
		if err := storage.DB.First(&task, input.Owner.ID).Error; err != nil {
			utils.NotFound(ctx, "task not found")
			return
		}
		if !canTouchTaskAttachment(&task, claims) {
			utils.Forbidden(ctx, "not allowed to attach to this task")
			return
		}
		media.TaskID = &task.ID
	default:
		utils.Validation(ctx, "owner type must be task or message")
		return
	}

	if err := storage.DB.Create(&media).Error; err != nil {
		// the unique storage key means a second confirm for the same upload
		utils.Conflict(ctx, "attachment already confirmed")
		return
	}

	if media.MessageID != nil {
		storage.DB.Model(&models.Message{}).Where("id = ?", *media.MessageID).
			Update("attachment_url", media.StorageKey)
	}

	// consume the reservation
	storage.Redis.Del(ctx.Request().Context(), reservationKey(input.StorageKey))

	ctx.StatusCode(http.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "data": media})
}

// ViewAttachment issues a short-lived read grant. Authorization is never
// cached from upload time; it is re-evaluated on every view.
func ViewAttachment(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	mediaID, err := ctx.Params().GetUint("mediaID")
	if err != nil {
		utils.Validation(ctx, "invalid attachment id")
		return
	}

	var media models.Media
	if err := storage.DB.First(&media, mediaID).Error; err != nil {
		utils.NotFound(ctx, "attachment not found")
		return
	}
	if !canAccessMedia(&media, claims) {
		utils.Forbidden(ctx, "not allowed to view this attachment")
		return
	}

	url, err := storage.SignedViewURL(media.StorageKey, viewGrantTTL)
	if err != nil {
		utils.JSONError(ctx, http.StatusServiceUnavailable, utils.ErrStorageUnavailable, "object storage is not available")
		return
	}

	ctx.JSON(iris.Map{
		"success":   true,
		"url":       url,
		"expiresAt": time.Now().Add(viewGrantTTL),
	})
}

// DeleteAttachment removes the stored object (best-effort) and then the
// metadata row. The metadata delete proceeds whether or not the store delete
// succeeded; the orphaned object is an accepted trade-off.
func DeleteAttachment(ctx iris.Context) {
	claims := utils.Claims(ctx)
	if claims == nil {
		return
	}
	mediaID, err := ctx.Params().GetUint("mediaID")
	if err != nil {
		utils.Validation(ctx, "invalid attachment id")
		return
	}

	var media models.Media
	if err := storage.DB.First(&media, mediaID).Error; err != nil {
		utils.NotFound(ctx, "attachment not found")
		return
	}
	if media.UploaderID != claims.ID && !utils.Can(claims.Role, utils.ActionDeleteAnyMedia) {
		utils.Forbidden(ctx, "only the uploader or an elevated role can delete an attachment")
		return
	}

	storage.DeleteObject(media.StorageKey)

	if err := storage.DB.Delete(&media).Error; err != nil {
		utils.Internal(ctx)
		return
	}
	if media.MessageID != nil {
		storage.DB.Model(&models.Message{}).Where("id = ?", *media.MessageID).
			Update("attachment_url", "")
	}

	utils.Audit(ctx, "attachment_delete", "media", media.ID, media, nil)
	ctx.JSON(iris.Map{"success": true})
}

func canTouchMessageAttachment(message *models.Message, claims *utils.AccessToken) bool {
	if message.SenderID == claims.ID {
		return true
	}
	var membership models.ChannelMember
	err := storage.DB.Where("channel_id = ? AND user_id = ?", message.ChannelID, claims.ID).
		First(&membership).Error
	return err == nil
}

func canTouchTaskAttachment(task *models.Task, claims *utils.AccessToken) bool {
	if task.AssigneeID != nil && *task.AssigneeID == claims.ID {
		return true
	}
	return utils.Can(claims.Role, utils.ActionManageAnyTask)
}

// canAccessMedia re-applies the confirm-time ownership rule for views.
func canAccessMedia(media *models.Media, claims *utils.AccessToken) bool {
	if media.UploaderID == claims.ID {
		return true
	}
	if media.MessageID != nil {
		var message models.Message
		if err := storage.DB.First(&message, *media.MessageID).Error; err != nil {
			return false
		}
		return canTouchMessageAttachment(&message, claims)
	}
	if media.TaskID != nil {
		var task models.Task
		if err := storage.DB.First(&task, *media.TaskID).Error; err != nil {
			return false
		}
		return canTouchTaskAttachment(&task, claims)
	}
	return false
}
