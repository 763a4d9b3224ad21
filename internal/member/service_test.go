package member

import (
	"context"
	"errors"
	"testing"

	"github.com/irissociety/irisportal/internal/model"
	"github.com/irissociety/irisportal/internal/repository"
)

// --- モック ---

type mockProfileRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.UserProfile, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

var _ repository.ProfileRepository = (*mockProfileRepo)(nil)

func (m *mockProfileRepo) Upsert(_ context.Context, _ *model.UserProfile) error { return nil }

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProfileRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockSessionRepo struct {
	deleteBySubjectIDFn func(ctx context.Context, subjectID string) error
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func (m *mockSessionRepo) Create(_ context.Context, _ *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(_ context.Context, _ string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(_ context.Context, _ string) error { return nil }
func (m *mockSessionRepo) DeleteBySubjectID(ctx context.Context, subjectID string) error {
	if m.deleteBySubjectIDFn != nil {
		return m.deleteBySubjectIDFn(ctx, subjectID)
	}
	return nil
}

// --- テスト ---

func TestProfile_Found(t *testing.T) {
	svc := NewService(&mockProfileRepo{
		findByIDFn: func(_ context.Context, id string) (*model.UserProfile, error) {
			return &model.UserProfile{ID: id, Email: "a@ds.study.iitm.ac.in", Name: "A"}, nil
		},
	}, &mockSessionRepo{})

	p, err := svc.Profile(context.Background(), "sub-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "sub-a" || p.Name != "A" {
		t.Errorf("profile = %+v", p)
	}
}

func TestProfile_NotFound_ReturnsAPIError(t *testing.T) {
	svc := NewService(&mockProfileRepo{}, &mockSessionRepo{})

	_, err := svc.Profile(context.Background(), "sub-a")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != model.ErrCodeProfileNotFound {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeProfileNotFound)
	}
}

func TestProfile_RepoError(t *testing.T) {
	svc := NewService(&mockProfileRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.UserProfile, error) {
			return nil, errors.New("db down")
		},
	}, &mockSessionRepo{})

	_, err := svc.Profile(context.Background(), "sub-a")

	var apiErr *model.APIError
	if err == nil || errors.As(err, &apiErr) {
		t.Errorf("expected plain error, got %v", err)
	}
}

func TestWithdraw_DeletesSessionsThenProfile(t *testing.T) {
	var order []string
	svc := NewService(&mockProfileRepo{
		deleteByIDFn: func(_ context.Context, id string) error {
			order = append(order, "profile:"+id)
			return nil
		},
	}, &mockSessionRepo{
		deleteBySubjectIDFn: func(_ context.Context, id string) error {
			order = append(order, "sessions:"+id)
			return nil
		},
	})

	if err := svc.Withdraw(context.Background(), "sub-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != 2 || order[0] != "sessions:sub-a" || order[1] != "profile:sub-a" {
		t.Errorf("order = %v", order)
	}
}

func TestWithdraw_SessionDeleteError_StopsBeforeProfile(t *testing.T) {
	profileDeleted := false
	svc := NewService(&mockProfileRepo{
		deleteByIDFn: func(_ context.Context, _ string) error {
			profileDeleted = true
			return nil
		},
	}, &mockSessionRepo{
		deleteBySubjectIDFn: func(_ context.Context, _ string) error {
			return errors.New("db down")
		},
	})

	if err := svc.Withdraw(context.Background(), "sub-a"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if profileDeleted {
		t.Error("profile must not be deleted when session deletion fails")
	}
}
