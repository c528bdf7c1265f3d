package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Kerhoff/walkbot/internal/models"
)

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.users[user.ID]; ok {
		return &existing, nil
	}
	now := r.s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ReminderLeadMinutes == 0 {
		user.ReminderLeadMinutes = models.DefaultReminderLeadMinutes
	}
	r.s.users[user.ID] = *user
	out := *user
	return &out, nil
}

func (r *userRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepository) Update(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[user.ID]
	if !ok {
		return nil, fmt.Errorf("failed to update user: user %d not found", user.ID)
	}
	u.FirstName = user.FirstName
	u.Username = user.Username
	u.UpdatedAt = r.s.now()
	r.s.users[user.ID] = u
	return &u, nil
}

func (r *userRepository) List(_ context.Context) ([]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	users := make([]*models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		u := u
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *userRepository) SetReminderLead(_ context.Context, id int64, minutes int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return fmt.Errorf("user with ID %d not found", id)
	}
	u.ReminderLeadMinutes = minutes
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}
