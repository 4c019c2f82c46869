// Package teamtest provides an in-memory slot and assignment store for unit
// tests. The tx argument is ignored.
package teamtest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/models"
)

type Store struct {
	mu          sync.Mutex
	slots       map[uuid.UUID]*models.JobSkillSlot
	assignments []*models.JobWorkerAssignment
}

func NewStore() *Store {
	return &Store{slots: make(map[uuid.UUID]*models.JobSkillSlot)}
}

// AddSlot seeds a slot, assigning it an id when missing.
func (s *Store) AddSlot(slot *models.JobSkillSlot) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	if slot.Status == "" {
		slot.Status = models.SlotStatusOpen
	}
	s.slots[slot.ID] = slot
	return slot.ID
}

// Slot returns a copy of the stored slot.
func (s *Store) Slot(id uuid.UUID) models.JobSkillSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.slots[id]
}

func (s *Store) InsertSlot(_ context.Context, _ pgx.Tx, slot *models.JobSkillSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *slot
	s.slots[slot.ID] = &cp
	return nil
}

func (s *Store) SlotForUpdate(_ context.Context, _ pgx.Tx, slotID uuid.UUID) (*models.JobSkillSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *slot
	return &cp, nil
}

func (s *Store) SlotsByJob(_ context.Context, _ pgx.Tx, jobID uuid.UUID) ([]*models.JobSkillSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.JobSkillSlot
	for _, slot := range s.slots {
		if slot.JobID == jobID {
			cp := *slot
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (s *Store) UpdateSlotStatus(_ context.Context, _ pgx.Tx, slotID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return pgx.ErrNoRows
	}
	slot.Status = status
	return nil
}

func (s *Store) InsertAssignment(_ context.Context, _ pgx.Tx, a *models.JobWorkerAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.assignments = append(s.assignments, &cp)
	return nil
}

func (s *Store) AssignmentsByJob(_ context.Context, _ pgx.Tx, jobID uuid.UUID) ([]*models.JobWorkerAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.JobWorkerAssignment
	for _, a := range s.assignments {
		if a.JobID == jobID {
			cp := *a
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (s *Store) AssignmentsBySlot(_ context.Context, _ pgx.Tx, slotID uuid.UUID) ([]*models.JobWorkerAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.JobWorkerAssignment
	for _, a := range s.assignments {
		if a.SkillSlotID == slotID {
			cp := *a
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (s *Store) AssignmentByID(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.JobWorkerAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) AssignmentByJobWorker(_ context.Context, _ pgx.Tx, jobID, workerID uuid.UUID) (*models.JobWorkerAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.assignments) - 1; i >= 0; i-- {
		a := s.assignments[i]
		if a.JobID == jobID && a.WorkerID == workerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateAssignment(_ context.Context, _ pgx.Tx, a *models.JobWorkerAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, old := range s.assignments {
		if old.ID == a.ID {
			cp := *a
			s.assignments[i] = &cp
			return nil
		}
	}
	return pgx.ErrNoRows
}
