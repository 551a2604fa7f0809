package services

import (
	"context"
	"errors"
	"fmt"

	"acronym-restful/models"
	"acronym-restful/repositories"
	"acronym-restful/tags"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reconcileAttempts = 2

// AcronymService covers acronym reads, writes and their categories.
// Any authenticated caller may change any acronym; a write makes the
// caller the owner.
type AcronymService interface {
	List(ctx context.Context) ([]models.Acronym, error)
	Get(ctx context.Context, id uint) (*models.Acronym, error)
	Search(ctx context.Context, term string) ([]models.Acronym, error)
	First(ctx context.Context) (*models.Acronym, error)
	Sorted(ctx context.Context) ([]models.Acronym, error)
	Owner(ctx context.Context, id uint) (*models.User, error)
	Categories(ctx context.Context, id uint) ([]models.Category, error)

	Create(ctx context.Context, owner uuid.UUID, input *AcronymInput) (*models.Acronym, error)
	Update(ctx context.Context, id uint, editor uuid.UUID, input *AcronymInput) (*models.Acronym, error)
	Delete(ctx context.Context, id uint) error
	AddCategory(ctx context.Context, acronymID, categoryID uint) error
	RemoveCategory(ctx context.Context, acronymID, categoryID uint) error
}

// AcronymInput is the payload of create and update. A nil Categories
// leaves the tags alone on update and means none on create; a non-nil
// empty slice clears them.
type AcronymInput struct {
	Short      string    `json:"short" description:"Short form, e.g. OMG"`
	Long       string    `json:"long" description:"Long form, e.g. Oh My God"`
	Categories *[]string `json:"categories,omitempty" description:"Desired category names; omit to keep the current ones"`
}

func (in *AcronymInput) validate() error {
	if in.Short == "" || in.Long == "" {
		return fmt.Errorf("short and long are required: %w", ErrInvalidInput)
	}
	return nil
}

type acronymService struct {
	repos  *repositories.Repositories
	logger *zap.Logger
}

var _ AcronymService = (*acronymService)(nil)

func NewAcronymService(repos *repositories.Repositories, logger *zap.Logger) AcronymService {
	return &acronymService{repos: repos, logger: logger.Named("acronyms")}
}

func (s *acronymService) List(ctx context.Context) ([]models.Acronym, error) {
	acronyms, err := s.repos.Acronyms.FindAll(ctx)
	if err != nil {
		return nil, storageError("acronyms", err)
	}
	return acronyms, nil
}

func (s *acronymService) Get(ctx context.Context, id uint) (*models.Acronym, error) {
	acronym, err := s.repos.Acronyms.FindByID(ctx, id)
	if err != nil {
		return nil, storageError(fmt.Sprintf("acronym %d", id), err)
	}
	return acronym, nil
}

func (s *acronymService) Search(ctx context.Context, term string) ([]models.Acronym, error) {
	if term == "" {
		return nil, fmt.Errorf("search term is required: %w", ErrInvalidInput)
	}
	acronyms, err := s.repos.Acronyms.Search(ctx, term)
	if err != nil {
		return nil, storageError("acronyms", err)
	}
	return acronyms, nil
}

func (s *acronymService) First(ctx context.Context) (*models.Acronym, error) {
	acronym, err := s.repos.Acronyms.FindFirst(ctx)
	if err != nil {
		return nil, storageError("acronym", err)
	}
	return acronym, nil
}

func (s *acronymService) Sorted(ctx context.Context) ([]models.Acronym, error) {
	acronyms, err := s.repos.Acronyms.FindSorted(ctx)
	if err != nil {
		return nil, storageError("acronyms", err)
	}
	return acronyms, nil
}

func (s *acronymService) Owner(ctx context.Context, id uint) (*models.User, error) {
	acronym, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err := s.repos.Users.FindByID(ctx, acronym.UserID)
	if err != nil {
		return nil, storageError("owner", err)
	}
	return user, nil
}

func (s *acronymService) Categories(ctx context.Context, id uint) ([]models.Category, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	categories, err := s.repos.Categories.FindByAcronym(ctx, id)
	if err != nil {
		return nil, storageError("categories", err)
	}
	return categories, nil
}

// Create stores the acronym and its categories in one transaction.
func (s *acronymService) Create(ctx context.Context, owner uuid.UUID, input *AcronymInput) (*models.Acronym, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var desired []string
	if input.Categories != nil {
		desired = *input.Categories
	}

	acronym := models.Acronym{Short: input.Short, Long: input.Long, UserID: owner}
	err := s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Acronyms.Create(ctx, &acronym); err != nil {
			return storageError("acronym", err)
		}
		if acronym.ID == 0 {
			return fmt.Errorf("acronym has no id after create: %w", ErrInternal)
		}
		return s.reconcile(ctx, tx, acronym.ID, desired)
	})
	if err != nil {
		return nil, err
	}
	return &acronym, nil
}

// Update rewrites short and long, makes editor the owner and reconciles
// categories when input.Categories is set.
func (s *acronymService) Update(ctx context.Context, id uint, editor uuid.UUID, input *AcronymInput) (*models.Acronym, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var acronym *models.Acronym
	err := s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		var err error
		acronym, err = tx.Acronyms.FindByID(ctx, id)
		if err != nil {
			return storageError(fmt.Sprintf("acronym %d", id), err)
		}
		acronym.Short = input.Short
		acronym.Long = input.Long
		acronym.UserID = editor
		if err := tx.Acronyms.Update(ctx, acronym); err != nil {
			return storageError(fmt.Sprintf("acronym %d", id), err)
		}
		if input.Categories == nil {
			return nil
		}
		return s.reconcile(ctx, tx, id, *input.Categories)
	})
	if err != nil {
		return nil, err
	}
	return acronym, nil
}

// Delete removes the acronym and its pivot rows. Categories stay.
func (s *acronymService) Delete(ctx context.Context, id uint) error {
	if err := s.repos.Acronyms.Delete(ctx, id); err != nil {
		return storageError(fmt.Sprintf("acronym %d", id), err)
	}
	return nil
}

func (s *acronymService) AddCategory(ctx context.Context, acronymID, categoryID uint) error {
	return s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := s.checkPair(ctx, tx, acronymID, categoryID); err != nil {
			return err
		}
		if err := tx.Categories.Attach(ctx, acronymID, categoryID); err != nil {
			return storageError("attach", err)
		}
		return nil
	})
}

func (s *acronymService) RemoveCategory(ctx context.Context, acronymID, categoryID uint) error {
	return s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := s.checkPair(ctx, tx, acronymID, categoryID); err != nil {
			return err
		}
		if err := tx.Categories.Detach(ctx, acronymID, categoryID); err != nil {
			return storageError("detach", err)
		}
		return nil
	})
}

func (s *acronymService) checkPair(ctx context.Context, tx *repositories.Repositories, acronymID, categoryID uint) error {
	if _, err := tx.Acronyms.FindByID(ctx, acronymID); err != nil {
		return storageError(fmt.Sprintf("acronym %d", acronymID), err)
	}
	if _, err := tx.Categories.FindByID(ctx, categoryID); err != nil {
		return storageError(fmt.Sprintf("category %d", categoryID), err)
	}
	return nil
}

// reconcile runs the tag reconciler inside a savepoint of tx. A failed
// attempt is rolled back and retried once against a fresh read.
func (s *acronymService) reconcile(ctx context.Context, tx *repositories.Repositories, acronymID uint, desired []string) error {
	var lastErr error
	for attempt := 1; attempt <= reconcileAttempts; attempt++ {
		var res tags.Result
		lastErr = tx.Transaction(ctx, func(sp *repositories.Repositories) error {
			var err error
			res, err = tags.Reconcile(ctx, sp.Categories, acronymID, desired)
			return err
		})
		if lastErr == nil {
			if res.Writes() > 0 {
				s.logger.Debug("Reconciled categories",
					zap.Uint("acronym_id", acronymID),
					zap.Strings("added", res.Added),
					zap.Strings("removed", res.Removed),
					zap.Strings("created", res.Created))
			}
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}
		s.logger.Warn("Category reconciliation failed",
			zap.Uint("acronym_id", acronymID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}
	return fmt.Errorf("reconcile categories of acronym %d: %w: %w", acronymID, ErrInternal, lastErr)
}
