package stats

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/auth"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Dashboard returns the counters of doctorID, which must be the session's
// own practice.
func (s *Service) Dashboard(ctx context.Context, sess *auth.Session, doctorID uuid.UUID) (*Dashboard, error) {
	if doctorID != sess.DoctorID {
		return nil, apperr.Forbidden("statistics of another practice are not accessible")
	}
	return s.repo.Dashboard(ctx, doctorID, WindowAt(s.now()))
}
