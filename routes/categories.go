package routes

import (
	"net/http"

	"teamops-server/models"
	"teamops-server/storage"
	"teamops-server/utils"

	"github.com/kataras/iris/v12"
	"gorm.io/gorm"
)

// GetChannelCategories returns the directory's categories in display order.
func GetChannelCategories(ctx iris.Context) {
	var categories []models.ChannelCategory
	err := storage.DB.Order("sort_order ASC, name ASC").Find(&categories).Error
	if err != nil {
		utils.Internal(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"success": true,
		"data":    categories,
		"count":   len(categories),
	})
}

type upsertCategoryInput struct {
	Name      string `json:"name" validate:"required,lt=80"`
	SortOrder int    `json:"sortOrder" validate:"gte=0"`
}

func CreateChannelCategory(ctx iris.Context) {
	var input upsertCategoryInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	slug := utils.Slugify(input.Name)
	if slug == "" {
		utils.Validation(ctx, "category name must contain letters or digits")
		return
	}
	if slug == models.UncategorizedSlug {
		utils.Conflict(ctx, "category name is reserved")
		return
	}

	var existing models.ChannelCategory
	if err := storage.DB.Where("slug = ?", slug).First(&existing).Error; err == nil {
		utils.Conflict(ctx, "a category with this name already exists")
		return
	}

	category := models.ChannelCategory{
		Name:      input.Name,
		Slug:      slug,
		SortOrder: input.SortOrder,
	}
	if err := storage.DB.Create(&category).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	utils.Audit(ctx, "category_create", "channel_category", category.ID, nil, category)
	ctx.StatusCode(http.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "data": category})
}

func UpdateChannelCategory(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.Validation(ctx, "invalid category id")
		return
	}

	var input upsertCategoryInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var category models.ChannelCategory
	if err := storage.DB.First(&category, id).Error; err != nil {
		utils.NotFound(ctx, "category not found")
		return
	}
	if category.Slug == models.UncategorizedSlug {
		utils.Forbidden(ctx, "the uncategorized bucket cannot be edited")
		return
	}

	before := category
	slug := utils.Slugify(input.Name)
	if slug == "" {
		utils.Validation(ctx, "category name must contain letters or digits")
		return
	}
	var other models.ChannelCategory
	if err := storage.DB.Where("slug = ? AND id <> ?", slug, category.ID).First(&other).Error; err == nil {
		slug = utils.DisambiguateSlug(slug, category.ID)
	}

	category.Name = input.Name
	category.Slug = slug
	category.SortOrder = input.SortOrder
	if err := storage.DB.Save(&category).Error; err != nil {
		utils.Internal(ctx)
		return
	}

	utils.Audit(ctx, "category_update", "channel_category", category.ID, before, category)
	ctx.JSON(iris.Map{"success": true, "data": category})
}

// DeleteChannelCategory removes a category and reassigns its channels to the
// uncategorized bucket. Channels are never deleted as a side effect.
func DeleteChannelCategory(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.Validation(ctx, "invalid category id")
		return
	}

	var category models.ChannelCategory
	if err := storage.DB.First(&category, id).Error; err != nil {
		utils.NotFound(ctx, "category not found")
		return
	}
	if category.Slug == models.UncategorizedSlug {
		utils.Forbidden(ctx, "the uncategorized bucket cannot be deleted")
		return
	}

	bucket, err := uncategorizedBucket(storage.DB)
	if err != nil {
		utils.Internal(ctx)
		return
	}

	txErr := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Channel{}).
			Where("category_id = ?", category.ID).
			Update("category_id", bucket.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
	if txErr != nil {
		utils.Internal(ctx)
		return
	}

	utils.Audit(ctx, "category_delete", "channel_category", category.ID, category, nil)
	ctx.JSON(iris.Map{"success": true})
}

// uncategorizedBucket find-or-creates the synthetic category that receives
// channels when their category is deleted.
func uncategorizedBucket(db *gorm.DB) (models.ChannelCategory, error) {
	bucket := models.ChannelCategory{
		Name:      "Uncategorized",
		Slug:      models.UncategorizedSlug,
		SortOrder: 9999,
	}
	err := db.Where("slug = ?", models.UncategorizedSlug).FirstOrCreate(&bucket).Error
	return bucket, err
}
