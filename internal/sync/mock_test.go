package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/dhkang/photocal/internal/model"
)

// mockCalendar is an in-memory RemoteCalendar. Deleted events stay in
// the map with the Deleted flag set, the way a provider keeps
// cancelled stubs visible to incremental fetches.
type mockCalendar struct {
	mu     gosync.Mutex
	events map[string]*model.RemoteEvent
	nextID int

	listErr   error
	createErr error
	updateErr map[string]error
	deleteErr map[string]error

	listCalls   int
	createCalls int
}

func newMockCalendar(events ...model.RemoteEvent) *mockCalendar {
	m := &mockCalendar{
		events:    make(map[string]*model.RemoteEvent),
		updateErr: make(map[string]error),
		deleteErr: make(map[string]error),
	}
	for i := range events {
		cp := events[i]
		m.events[cp.RemoteID] = &cp
	}
	return m
}

func (m *mockCalendar) List(_ context.Context, w model.Window) ([]model.RemoteEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.RemoteEvent
	for _, ev := range m.events {
		inWindow := !ev.Start.Before(w.From) && ev.Start.Before(w.To)
		if ev.Deleted || inWindow {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (m *mockCalendar) Create(_ context.Context, ev *model.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.createErr != nil {
		return "", m.createErr
	}
	var id string
	for {
		m.nextID++
		id = fmt.Sprintf("g-%d", m.nextID)
		if _, taken := m.events[id]; !taken {
			break
		}
	}
	m.events[id] = &model.RemoteEvent{
		RemoteID:    id,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       ev.Start,
		End:         ev.End,
		AllDay:      ev.AllDay,
		UpdatedAt:   time.Now().UTC(),
	}
	return id, nil
}

func (m *mockCalendar) Update(_ context.Context, remoteID string, ev *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.updateErr[remoteID]; err != nil {
		return err
	}
	existing, ok := m.events[remoteID]
	if !ok {
		return fmt.Errorf("remote event %q not found", remoteID)
	}
	existing.Title = ev.Title
	existing.Description = ev.Description
	existing.Location = ev.Location
	existing.Start = ev.Start
	existing.End = ev.End
	existing.AllDay = ev.AllDay
	existing.Deleted = false
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockCalendar) Delete(_ context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.deleteErr[remoteID]; err != nil {
		return err
	}
	if ev, ok := m.events[remoteID]; ok {
		ev.Deleted = true
	}
	return nil
}

// get returns a copy of the stored event, or nil.
func (m *mockCalendar) get(remoteID string) *model.RemoteEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[remoteID]
	if !ok {
		return nil
	}
	cp := *ev
	return &cp
}

// liveCount counts events not marked deleted.
func (m *mockCalendar) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if !ev.Deleted {
			n++
		}
	}
	return n
}

// edit mutates a seeded event in place and stamps its modification time.
func (m *mockCalendar) edit(remoteID string, updatedAt time.Time, fn func(*model.RemoteEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[remoteID]; ok {
		fn(ev)
		ev.UpdatedAt = updatedAt
	}
}
