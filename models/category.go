package models

// Category is a tag. Names are unique and compared byte for byte.
type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:191;uniqueIndex;not null" json:"name"` // 191 keeps the index within MySQL's utf8mb4 key limit
}

// AcronymCategory is the pivot row linking an acronym to a category.
// The composite primary key keeps each link unique.
type AcronymCategory struct {
	AcronymID  uint      `gorm:"primaryKey;autoIncrement:false"`
	CategoryID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	Acronym    *Acronym  `gorm:"constraint:OnDelete:CASCADE"` // Deleting an acronym drops its links
	Category   *Category `gorm:"constraint:OnDelete:CASCADE"`
}

func (AcronymCategory) TableName() string {
	return "acronym_categories"
}

func CategoryNames(categories []Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}
