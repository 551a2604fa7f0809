// Package tags reconciles the categories attached to an acronym with a
// desired set of names using the fewest writes.
//
// Planning is pure: Plan turns the current state into an ordered list of
// effects. Apply executes them against a Store. Callers that want
// all-or-nothing behaviour pass a Store bound to a transaction.
package tags

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"acronym-restful/models"

	"gorm.io/gorm"
)

// Store is the category and pivot access the reconciler needs.
type Store interface {
	FindByAcronym(ctx context.Context, acronymID uint) ([]models.Category, error)
	FindByNames(ctx context.Context, names []string) ([]models.Category, error)
	FindByName(ctx context.Context, name string) (*models.Category, error)
	// FindByNameForShare must see rows committed after the caller's
	// transaction started.
	FindByNameForShare(ctx context.Context, name string) (*models.Category, error)
	// Create must return gorm.ErrDuplicatedKey when the name is taken.
	Create(ctx context.Context, category *models.Category) error
	// Attach must be a no-op for an existing pair.
	Attach(ctx context.Context, acronymID, categoryID uint) error
	Detach(ctx context.Context, acronymID, categoryID uint) error
}

type EffectKind int

const (
	CreateCategory EffectKind = iota
	Attach
	Detach
)

func (k EffectKind) String() string {
	switch k {
	case CreateCategory:
		return "create"
	case Attach:
		return "attach"
	case Detach:
		return "detach"
	default:
		return fmt.Sprintf("EffectKind(%d)", int(k))
	}
}

// Effect is one write. CategoryID is zero for an Attach whose category is
// created by an earlier CreateCategory effect of the same plan.
type Effect struct {
	Kind       EffectKind
	Name       string
	CategoryID uint
}

// Result reports what Apply changed.
type Result struct {
	Created []string
	Added   []string
	Removed []string
}

// Writes is the number of rows written.
func (r Result) Writes() int {
	return len(r.Created) + len(r.Added) + len(r.Removed)
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Diff returns desired minus existing and existing minus desired, both
// sorted and free of duplicates. Names compare byte for byte.
func Diff(existing, desired []string) (toAdd, toRemove []string) {
	have := toSet(existing)
	want := toSet(desired)
	for n := range want {
		if _, ok := have[n]; !ok {
			toAdd = append(toAdd, n)
		}
	}
	for n := range have {
		if _, ok := want[n]; !ok {
			toRemove = append(toRemove, n)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

// Plan computes the effects moving an acronym from existing to desired.
// known holds the stored categories among the names to add. Effects are
// ordered creates, then attaches, then detaches.
func Plan(existing []models.Category, known []models.Category, desired []string) []Effect {
	toAdd, toRemove := Diff(models.CategoryNames(existing), desired)

	knownIDs := make(map[string]uint, len(known))
	for _, c := range known {
		knownIDs[c.Name] = c.ID
	}
	existingIDs := make(map[string]uint, len(existing))
	for _, c := range existing {
		existingIDs[c.Name] = c.ID
	}

	var creates, attaches, detaches []Effect
	for _, name := range toAdd {
		id, ok := knownIDs[name]
		if !ok {
			creates = append(creates, Effect{Kind: CreateCategory, Name: name})
		}
		attaches = append(attaches, Effect{Kind: Attach, Name: name, CategoryID: id})
	}
	for _, name := range toRemove {
		detaches = append(detaches, Effect{Kind: Detach, Name: name, CategoryID: existingIDs[name]})
	}

	effects := make([]Effect, 0, len(creates)+len(attaches)+len(detaches))
	effects = append(effects, creates...)
	effects = append(effects, attaches...)
	return append(effects, detaches...)
}

// Reconcile reads the acronym's current categories, plans and applies.
// Calling it twice with the same desired names writes nothing the second time.
func Reconcile(ctx context.Context, store Store, acronymID uint, desired []string) (Result, error) {
	existing, err := store.FindByAcronym(ctx, acronymID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load categories of acronym %d: %w", acronymID, err)
	}
	toAdd, _ := Diff(models.CategoryNames(existing), desired)
	known, err := store.FindByNames(ctx, toAdd)
	if err != nil {
		return Result{}, fmt.Errorf("failed to look up categories: %w", err)
	}
	return Apply(ctx, store, acronymID, Plan(existing, known, desired))
}

// Apply executes effects in order. It stops at the first failure; the
// Result then describes the writes made so far.
func Apply(ctx context.Context, store Store, acronymID uint, effects []Effect) (Result, error) {
	var res Result
	created := map[string]uint{}

	for _, e := range effects {
		switch e.Kind {
		case CreateCategory:
			category, fresh, err := createOrFind(ctx, store, e.Name)
			if err != nil {
				return res, err
			}
			created[e.Name] = category.ID
			if fresh {
				res.Created = append(res.Created, e.Name)
			}
		case Attach:
			id := e.CategoryID
			if id == 0 {
				id = created[e.Name]
			}
			if id == 0 {
				return res, fmt.Errorf("no category id for %q", e.Name)
			}
			if err := store.Attach(ctx, acronymID, id); err != nil {
				return res, fmt.Errorf("failed to attach category %q: %w", e.Name, err)
			}
			res.Added = append(res.Added, e.Name)
		case Detach:
			if err := store.Detach(ctx, acronymID, e.CategoryID); err != nil {
				return res, fmt.Errorf("failed to detach category %q: %w", e.Name, err)
			}
			res.Removed = append(res.Removed, e.Name)
		default:
			return res, fmt.Errorf("unknown effect %v", e.Kind)
		}
	}
	return res, nil
}

// createOrFind inserts the category, or loads the row a concurrent writer
// inserted first. fresh reports whether this call created it.
func createOrFind(ctx context.Context, store Store, name string) (category *models.Category, fresh bool, err error) {
	category = &models.Category{Name: name}
	err = store.Create(ctx, category)
	if err == nil {
		return category, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	category, err = store.FindByNameForShare(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load category %q after conflict: %w", name, err)
	}
	return category, false, nil
}
