package services

import (
	"context"
	"fmt"

	"acronym-restful/models"
	"acronym-restful/repositories"
)

type CategoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, id uint) (*models.Category, error)
	// Create fails with ErrConflict when the name is taken.
	Create(ctx context.Context, input *CreateCategoryInput) (*models.Category, error)
	Acronyms(ctx context.Context, id uint) ([]models.Acronym, error)
}

type CreateCategoryInput struct {
	Name string `json:"name" description:"Category name, matched exactly"`
}

type categoryService struct {
	repos *repositories.Repositories
}

var _ CategoryService = (*categoryService)(nil)

func NewCategoryService(repos *repositories.Repositories) CategoryService {
	return &categoryService{repos: repos}
}

func (s *categoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repos.Categories.FindAll(ctx)
	if err != nil {
		return nil, storageError("categories", err)
	}
	return categories, nil
}

func (s *categoryService) Get(ctx context.Context, id uint) (*models.Category, error) {
	category, err := s.repos.Categories.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(fmt.Sprintf("category %d", id), err)
	}
	return category, nil
}

func (s *categoryService) Create(ctx context.Context, input *CreateCategoryInput) (*models.Category, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	category := models.Category{Name: input.Name}
	if err := s.repos.Categories.Create(ctx, &category); err != nil {
		return nil, storageError(fmt.Sprintf("category %q", input.Name), err)
	}
	return &category, nil
}

func (s *categoryService) Acronyms(ctx context.Context, id uint) ([]models.Acronym, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	acronyms, err := s.repos.Acronyms.FindByCategory(ctx, id)
	if err != nil {
		return nil, storageError("acronyms", err)
	}
	return acronyms, nil
}
