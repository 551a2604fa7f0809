package repositories

import (
	"context"

	"acronym-restful/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryRepository defines Category and pivot operations
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	FindByID(ctx context.Context, id uint) (*models.Category, error)
	FindByName(ctx context.Context, name string) (*models.Category, error)
	FindByNameForShare(ctx context.Context, name string) (*models.Category, error)
	FindByNames(ctx context.Context, names []string) ([]models.Category, error)
	FindAll(ctx context.Context) ([]models.Category, error)
	FindByAcronym(ctx context.Context, acronymID uint) ([]models.Category, error)
	Attach(ctx context.Context, acronymID, categoryID uint) error
	Detach(ctx context.Context, acronymID, categoryID uint) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// Create inserts a category. Inside an enclosing transaction the insert runs
// in its own savepoint, so a gorm.ErrDuplicatedKey leaves the outer
// transaction usable.
func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(category).Error
	})
}

func (r *categoryRepository) FindByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindByNameForShare reads the latest committed row under a shared lock, so a
// row inserted by a concurrent transaction is visible even under MySQL's
// REPEATABLE READ snapshot. SQLite ignores the lock clause.
func (r *categoryRepository) FindByNameForShare(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthShare}).
		Where("name = ?", name).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// FindByNames returns the stored categories among names. Unknown names are
// simply absent from the result.
func (r *categoryRepository) FindByNames(ctx context.Context, names []string) ([]models.Category, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var categories []models.Category
	if err := r.db.WithContext(ctx).Where("name IN ?", names).Order("id").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) FindAll(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("id").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// FindByAcronym returns the categories attached to the acronym.
func (r *categoryRepository) FindByAcronym(ctx context.Context, acronymID uint) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Joins("JOIN acronym_categories ON acronym_categories.category_id = categories.id").
		Where("acronym_categories.acronym_id = ?", acronymID).
		Order("categories.id").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Attach links acronym and category. Linking an already linked pair is a no-op.
func (r *categoryRepository) Attach(ctx context.Context, acronymID, categoryID uint) error {
	pivot := models.AcronymCategory{AcronymID: acronymID, CategoryID: categoryID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&pivot).Error
}

// Detach removes the link if present.
func (r *categoryRepository) Detach(ctx context.Context, acronymID, categoryID uint) error {
	return r.db.WithContext(ctx).
		Where("acronym_id = ? AND category_id = ?", acronymID, categoryID).
		Delete(&models.AcronymCategory{}).Error
}
