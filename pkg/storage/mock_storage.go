package storage

import (
	"sync"
	"time"

	"github.com/hadiudoit11/merlin/pkg/models"
)

// MockStore implements Store with in-memory storage for unit tests. It is
// safe for concurrent use, so dispatcher workers can run against it.
type MockStore struct {
	mu          sync.Mutex
	events      []models.InputEvent
	tasks       []models.Task
	nodes       []models.Node
	canvases    []models.Canvas
	links       []models.TaskNodeLink
	members     []models.Member
	settings    []models.ProviderSettings
	nextEventID int64
	nextTaskID  int64
	nextNodeID  int64
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Begin() (Store, error) { return m, nil }
func (m *MockStore) Commit() error         { return nil }
func (m *MockStore) Rollback() error       { return nil }
func (m *MockStore) Close() error          { return nil }

func (m *MockStore) CreateInputEvent(ev models.InputEvent) (models.InputEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.events {
		if existing.SourceType == ev.SourceType &&
			existing.ExternalID == ev.ExternalID &&
			existing.OrganizationID == ev.OrganizationID {
			return existing, false, nil
		}
	}
	m.nextEventID++
	ev.ID = m.nextEventID
	ev.Status = models.PendingEventStatus
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	m.events = append(m.events, ev)
	return ev, true, nil
}

func (m *MockStore) GetInputEvent(id int64) (models.InputEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return models.InputEvent{}, ErrNotFound
}

func (m *MockStore) ListInputEvents(limit int) ([]models.InputEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]models.InputEvent, len(m.events))
	copy(events, m.events)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *MockStore) MarkInputEventProcessing(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ev := range m.events {
		if ev.ID == id {
			now := time.Now()
			m.events[i].Status = models.ProcessingEventStatus
			m.events[i].StartedAt = &now
			if ev.StartedAt != nil {
				m.events[i].RetryCount = ev.RetryCount + 1
			}
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) FinishInputEvent(id int64, status models.EventStatus, errMsg string, results models.RunResults, taskIDs, nodeIDs models.Int64List) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ev := range m.events {
		if ev.ID == id {
			now := time.Now()
			m.events[i].Status = status
			m.events[i].Error = errMsg
			m.events[i].Results = results
			m.events[i].CreatedTaskIDs = taskIDs
			m.events[i].CreatedNodeIDs = nodeIDs
			m.events[i].FinishedAt = &now
			m.events[i].UpdatedAt = now
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStore) UpsertTask(t models.Task) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.tasks {
		if existing.Source == t.Source && existing.SourceID == t.SourceID &&
			existing.OrganizationID == t.OrganizationID {
			t.ID = existing.ID
			t.CreatedAt = existing.CreatedAt
			t.UpdatedAt = time.Now()
			m.tasks[i] = t
			return t.ID, false, nil
		}
	}
	m.nextTaskID++
	t.ID = m.nextTaskID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tasks = append(m.tasks, t)
	return t.ID, true, nil
}

func (m *MockStore) GetTask(id int64) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, ErrNotFound
}

func (m *MockStore) ListTasks(organizationID int64) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tasks []models.Task
	for _, t := range m.tasks {
		if t.OrganizationID == organizationID {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (m *MockStore) CreateNode(n models.Node) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextNodeID++
	n.ID = m.nextNodeID
	n.CreatedAt = time.Now()
	m.nodes = append(m.nodes, n)
	return n.ID, nil
}

func (m *MockStore) GetNode(id int64) (models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return models.Node{}, ErrNotFound
}

func (m *MockStore) GetCanvas(id int64) (models.Canvas, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.canvases {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Canvas{}, ErrNotFound
}

// AddCanvas seeds a canvas for tests.
func (m *MockStore) AddCanvas(c models.Canvas) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvases = append(m.canvases, c)
}

func (m *MockStore) LinkTaskToNode(taskID, nodeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.TaskID == taskID && l.NodeID == nodeID {
			return false, nil
		}
	}
	m.links = append(m.links, models.TaskNodeLink{
		TaskID:    taskID,
		NodeID:    nodeID,
		LinkType:  "related",
		CreatedAt: time.Now(),
	})
	return true, nil
}

func (m *MockStore) ListNodeLinks(taskID int64) ([]models.TaskNodeLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var links []models.TaskNodeLink
	for _, l := range m.links {
		if l.TaskID == taskID {
			links = append(links, l)
		}
	}
	return links, nil
}

func (m *MockStore) ListOrganizationMembers(organizationID int64) ([]models.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var members []models.Member
	for _, mem := range m.members {
		if mem.OrganizationID == organizationID {
			members = append(members, mem)
		}
	}
	return members, nil
}

// AddMember seeds an organization member for tests.
func (m *MockStore) AddMember(mem models.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, mem)
}

func (m *MockStore) GetMemberOrganization(userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.UserID == userID {
			return mem.OrganizationID, nil
		}
	}
	return 0, ErrNotFound
}

func (m *MockStore) GetProviderSettings(scope models.SettingsScope, ownerID int64) (models.ProviderSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ps := range m.settings {
		if ps.Scope != scope {
			continue
		}
		switch scope {
		case models.OrganizationScope:
			if ps.OrganizationID != nil && *ps.OrganizationID == ownerID {
				return ps, nil
			}
		case models.UserScope:
			if ps.UserID != nil && *ps.UserID == ownerID {
				return ps, nil
			}
		}
	}
	return models.ProviderSettings{}, ErrNotFound
}

// AddProviderSettings seeds provider settings for tests.
func (m *MockStore) AddProviderSettings(ps models.ProviderSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = append(m.settings, ps)
}
