// Package memory provides an in-process Repository. It is the default
// backend and the one the tests run against.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"splitroom/internal/core"
)

type roomData struct {
	expenses     map[string]core.Expense
	participants map[string]core.Participant
	settings     core.Settings
	hasSettings  bool
}

// Store keeps every room in process memory. Rooms appear on first write,
// matching the implicit-creation lifecycle of the persistent backends.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*roomData
}

func New() *Store {
	return &Store{rooms: make(map[string]*roomData)}
}

func (s *Store) room(roomID string) *roomData {
	rd, ok := s.rooms[roomID]
	if !ok {
		rd = &roomData{
			expenses:     make(map[string]core.Expense),
			participants: make(map[string]core.Participant),
		}
		s.rooms[roomID] = rd
	}
	return rd
}

func (s *Store) ListExpenses(_ context.Context, roomID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd := s.room(roomID)
	out := make([]core.Expense, 0, len(rd.expenses))
	for _, e := range rd.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, roomID string, e core.Expense) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.NewString()
	s.room(roomID).expenses[e.ID] = e
	return e.ID, nil
}

func (s *Store) UpdateExpense(_ context.Context, roomID, id, description string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd := s.room(roomID)
	e, ok := rd.expenses[id]
	if !ok {
		return core.ErrUnknownRecord
	}
	e.Description = description
	e.Amount = amount
	rd.expenses[id] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, roomID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd := s.room(roomID)
	if _, ok := rd.expenses[id]; !ok {
		return core.ErrUnknownRecord
	}
	delete(rd.expenses, id)
	return nil
}

func (s *Store) ListParticipants(_ context.Context, roomID string) ([]core.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd := s.room(roomID)
	out := make([]core.Participant, 0, len(rd.participants))
	for _, p := range rd.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateParticipant(_ context.Context, roomID string, p core.Participant) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	s.room(roomID).participants[p.ID] = p
	return p.ID, nil
}

func (s *Store) UpdateParticipant(_ context.Context, roomID, id, name string, amountPaid float64, mode core.PaymentMode, headCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd := s.room(roomID)
	p, ok := rd.participants[id]
	if !ok {
		return core.ErrUnknownRecord
	}
	p.Name = name
	p.AmountPaid = amountPaid
	p.Mode = mode
	p.HeadCount = headCount
	rd.participants[id] = p
	return nil
}

func (s *Store) DeleteParticipant(_ context.Context, roomID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd := s.room(roomID)
	if _, ok := rd.participants[id]; !ok {
		return core.ErrUnknownRecord
	}
	delete(rd.participants, id)
	return nil
}

func (s *Store) GetSettings(_ context.Context, roomID string) (core.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd := s.room(roomID)
	if !rd.hasSettings {
		return core.DefaultSettings(), nil
	}
	return rd.settings, nil
}

func (s *Store) MergeSettings(_ context.Context, roomID string, patch core.SettingsPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rd := s.room(roomID)
	if !rd.hasSettings {
		rd.settings = core.DefaultSettings()
		rd.hasSettings = true
	}
	if patch.Mode != nil {
		rd.settings.Mode = *patch.Mode
	}
	if patch.FixedRate != nil {
		rd.settings.FixedRate = *patch.FixedRate
	}
	return nil
}

func (s *Store) Close() error { return nil }
