package renders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/drewmudry/chatshorts-api/models"
)

// MemoryStore keeps renders in process memory. It backs local runs without
// Postgres and tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*models.Render
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uint]*models.Render), now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, r *models.Render) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	cp := *r
	s.items[r.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uint) (*models.Render, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) GetForUser(ctx context.Context, publicID string, userID uint) (*models.Render, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.items {
		if r.PublicID == publicID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID uint, limit int) ([]models.Render, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Render
	for _, r := range s.items {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			r.Status = v.(string)
		case "error_kind":
			r.ErrorKind = v.(string)
		case "error_message":
			r.ErrorMessage = v.(string)
		case "step_count":
			r.StepCount = v.(int)
		case "duration":
			r.Duration = v.(float64)
		case "output_path":
			r.OutputPath = v.(string)
		case "enhanced_path":
			r.EnhancedPath = v.(string)
		case "sped_up_path":
			r.SpedUpPath = v.(string)
		case "updated_at":
			r.UpdatedAt = v.(time.Time)
		}
	}
	if _, ok := fields["updated_at"]; !ok {
		r.UpdatedAt = s.now()
	}
	return nil
}

func (s *MemoryStore) InStatusBefore(ctx context.Context, status string, before time.Time) ([]models.Render, error) {
	return s.filter(func(r *models.Render) bool {
		return r.Status == status && r.UpdatedAt.Before(before)
	}), nil
}

func (s *MemoryStore) FinishedBefore(ctx context.Context, before time.Time) ([]models.Render, error) {
	return s.filter(func(r *models.Render) bool {
		return r.IsFinished() && r.UpdatedAt.Before(before)
	}), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) filter(keep func(*models.Render) bool) []models.Render {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Render
	for _, r := range s.items {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
