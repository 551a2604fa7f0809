package repositories

import (
	"context"

	"acronym-restful/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AcronymRepository defines Acronym-related database operations
type AcronymRepository interface {
	Create(ctx context.Context, acronym *models.Acronym) error
	FindByID(ctx context.Context, id uint) (*models.Acronym, error)
	FindAll(ctx context.Context) ([]models.Acronym, error)
	FindFirst(ctx context.Context) (*models.Acronym, error)
	FindSorted(ctx context.Context) ([]models.Acronym, error)
	Search(ctx context.Context, term string) ([]models.Acronym, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]models.Acronym, error)
	FindByCategory(ctx context.Context, categoryID uint) ([]models.Acronym, error)
	Update(ctx context.Context, acronym *models.Acronym) error
	Delete(ctx context.Context, id uint) error
}

type acronymRepository struct {
	db *gorm.DB
}

func NewAcronymRepository(db *gorm.DB) AcronymRepository {
	return &acronymRepository{db: db}
}

func (r *acronymRepository) Create(ctx context.Context, acronym *models.Acronym) error {
	return r.db.WithContext(ctx).Create(acronym).Error
}

func (r *acronymRepository) FindByID(ctx context.Context, id uint) (*models.Acronym, error) {
	var acronym models.Acronym
	if err := r.db.WithContext(ctx).First(&acronym, id).Error; err != nil {
		return nil, err
	}
	return &acronym, nil
}

func (r *acronymRepository) FindAll(ctx context.Context) ([]models.Acronym, error) {
	var acronyms []models.Acronym
	if err := r.db.WithContext(ctx).Order("id").Find(&acronyms).Error; err != nil {
		return nil, err
	}
	return acronyms, nil
}

// FindFirst returns the acronym with the lowest ID.
func (r *acronymRepository) FindFirst(ctx context.Context) (*models.Acronym, error) {
	var acronym models.Acronym
	if err := r.db.WithContext(ctx).First(&acronym).Error; err != nil {
		return nil, err
	}
	return &acronym, nil
}

// FindSorted returns all acronyms ordered by their short form.
func (r *acronymRepository) FindSorted(ctx context.Context) ([]models.Acronym, error) {
	var acronyms []models.Acronym
	err := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "short"}}).
		Order("id").
		Find(&acronyms).Error
	if err != nil {
		return nil, err
	}
	return acronyms, nil
}

// Search matches term exactly against either the short or the long form.
func (r *acronymRepository) Search(ctx context.Context, term string) ([]models.Acronym, error) {
	var acronyms []models.Acronym
	// clause.Eq quotes the column names; "long" is reserved in MySQL.
	err := r.db.WithContext(ctx).
		Where(clause.Or(
			clause.Eq{Column: clause.Column{Name: "short"}, Value: term},
			clause.Eq{Column: clause.Column{Name: "long"}, Value: term},
		)).
		Order("id").
		Find(&acronyms).Error
	if err != nil {
		return nil, err
	}
	return acronyms, nil
}

func (r *acronymRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]models.Acronym, error) {
	var acronyms []models.Acronym
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&acronyms).Error; err != nil {
		return nil, err
	}
	return acronyms, nil
}

// FindByCategory returns the acronyms linked to the category through the pivot table.
func (r *acronymRepository) FindByCategory(ctx context.Context, categoryID uint) ([]models.Acronym, error) {
	var acronyms []models.Acronym
	err := r.db.WithContext(ctx).
		Joins("JOIN acronym_categories ON acronym_categories.acronym_id = acronyms.id").
		Where("acronym_categories.category_id = ?", categoryID).
		Order("acronyms.id").
		Find(&acronyms).Error
	if err != nil {
		return nil, err
	}
	return acronyms, nil
}

// Update writes short, long and owner of an existing acronym.
func (r *acronymRepository) Update(ctx context.Context, acronym *models.Acronym) error {
	return r.db.WithContext(ctx).
		Model(acronym).
		Select("Short", "Long", "UserID").
		Updates(acronym).Error
}

// Delete removes the acronym together with all of its pivot rows. Categories
// are left in place. Returns gorm.ErrRecordNotFound when nothing was deleted.
func (r *acronymRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("acronym_id = ?", id).Delete(&models.AcronymCategory{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Acronym{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
