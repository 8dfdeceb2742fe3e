package assignment

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/kazi/core"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrMissingID          = errors.New("assignment id is required")
	ErrMissingSolutionKey = errors.New("solution key is required")
)

type (
	Repository interface {
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		SaveAssignment(ctx context.Context, a Assignment) error
		QueryAssignments(ctx context.Context) ([]Assignment, error)
	}

	// Source is the remote backend serving assignment definitions.
	Source interface {
		Assignment(ctx context.Context, id string) (Assignment, error)
		VerifySolutionKey(ctx context.Context, assignmentID, key string) (bool, error)
	}

	// KeyStore remembers the solution keys a student already unlocked, as bcrypt hashes.
	KeyStore interface {
		SolutionKeyHash(ctx context.Context, owner, assignmentID string) ([]byte, error)
		PutSolutionKeyHash(ctx context.Context, owner, assignmentID string, hash []byte) error
		DeleteSolutionKeyHash(ctx context.Context, owner, assignmentID string) error
	}

	Service struct {
		repo   Repository
		source Source
		keys   KeyStore
		logger core.Logger
	}
)

func NewService(repo Repository, source Source, keys KeyStore, logger core.Logger) *Service {
	return &Service{repo: repo, source: source, keys: keys, logger: logger}
}

// Get returns the stored master of an assignment, falling back to the backend.
// Assignments fetched from the backend are stored for later use.
func (svc *Service) Get(ctx context.Context, id string) (Assignment, error) {
	if NormalizeKey(id) == "" {
		return Assignment{}, core.NewValidationError(ErrMissingID, core.FieldError{Field: "assignmentId", Error: ErrMissingID.Error()})
	}

	a, err := svc.stored(ctx, id)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Assignment{}, err
	}

	a, err = svc.source.Assignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if a.ID == "" {
		a.ID = id
	}
	if err = svc.repo.SaveAssignment(ctx, a); err != nil {
		svc.logger.Warn("caching assignment", err, map[string]interface{}{"assignment": id})
	}
	return a, nil
}

// Master returns the stored master of an assignment only; it never asks the backend.
func (svc *Service) Master(ctx context.Context, id string) (Assignment, error) {
	return svc.stored(ctx, id)
}

func (svc *Service) stored(ctx context.Context, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		if norm := NormalizeKey(id); norm != id {
			a, err = svc.repo.GetAssignment(ctx, norm)
		}
	}
	if errors.Is(err, core.ErrNotFound) {
		return Assignment{}, ErrNotFound
	}
	return a, err
}

func (svc *Service) Save(ctx context.Context, a Assignment) (Assignment, error) {
	a.ID = NormalizeKey(a.ID)
	if a.ID == "" {
		return Assignment{}, core.NewValidationError(ErrMissingID, core.FieldError{Field: "assignmentId", Error: ErrMissingID.Error()})
	}
	for subID, sub := range a.SubAssignments {
		if sub.Type == "" {
			sub.Type = SubTypeQuill
			a.SubAssignments[subID] = sub
		}
	}
	if err := svc.repo.SaveAssignment(ctx, a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (svc *Service) List(ctx context.Context) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx)
}

// ForStudent returns an assignment with its solutions stripped, unless owner already unlocked them.
func (svc *Service) ForStudent(ctx context.Context, owner, id string) (Assignment, bool, error) {
	a, err := svc.Get(ctx, id)
	if err != nil {
		return Assignment{}, false, err
	}
	if !a.HasSolutions() {
		return a, false, nil
	}
	if _, err = svc.keys.SolutionKeyHash(ctx, owner, NormalizeKey(id)); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return a.WithoutSolutions(), false, nil
		}
		return Assignment{}, false, err
	}
	return a, true, nil
}

// UnlockSolutions verifies a solution key for owner.
// A key matching the remembered hash is accepted without asking the backend;
// a key rejected by the backend forgets the remembered one.
func (svc *Service) UnlockSolutions(ctx context.Context, owner, id, key string) (bool, error) {
	id, key = NormalizeKey(id), core.CleanString(key)
	if key == "" {
		return false, core.NewValidationError(ErrMissingSolutionKey, core.FieldError{Field: "key", Error: ErrMissingSolutionKey.Error()})
	}

	hash, err := svc.keys.SolutionKeyHash(ctx, owner, id)
	switch {
	case err == nil:
		if bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil {
			return true, nil
		}
	case !errors.Is(err, core.ErrNotFound):
		return false, err
	}

	valid, err := svc.source.VerifySolutionKey(ctx, id, key)
	if err != nil {
		return false, err
	}
	if !valid {
		if err = svc.keys.DeleteSolutionKeyHash(ctx, owner, id); err != nil {
			return false, err
		}
		return false, nil
	}

	hash, err = bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.Wrap(err, "hashing solution key")
	}
	if err = svc.keys.PutSolutionKeyHash(ctx, owner, id, hash); err != nil {
		return false, err
	}
	return true, nil
}
