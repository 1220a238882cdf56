package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/hadiudoit11/merlin/pkg/models"
	"github.com/hadiudoit11/merlin/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// CreateInputEvent inserts an event, deduplicating on
// (source_type, external_id, organization_id). A duplicate delivery returns
// the existing row with created=false instead of an error, so concurrent
// redeliveries race on the constraint rather than on a lock.
func (s *PostgresStore) CreateInputEvent(ev models.InputEvent) (models.InputEvent, bool, error) {
	payload := string(ev.Payload)
	if payload == "" {
		payload = "{}"
	}
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO input_events
			(source_type, event_type, external_id, payload, status, organization_id, user_id, canvas_id)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7)
		ON CONFLICT (source_type, external_id, organization_id) DO NOTHING
		RETURNING id`,
		ev.SourceType, ev.EventType, ev.ExternalID, payload,
		ev.OrganizationID, ev.UserID, ev.CanvasID).Scan(&id)
	if err == sql.ErrNoRows {
		existing, ferr := s.findInputEvent(ev.SourceType, ev.ExternalID, ev.OrganizationID)
		if ferr != nil {
			return models.InputEvent{}, false, ferr
		}
		return existing, false, nil
	}
	if err != nil {
		return models.InputEvent{}, false, fmt.Errorf("create input event: %w", err)
	}
	created, err := s.GetInputEvent(id)
	if err != nil {
		return models.InputEvent{}, false, err
	}
	return created, true, nil
}

func (s *PostgresStore) findInputEvent(st models.SourceType, externalID string, orgID int64) (models.InputEvent, error) {
	var ev models.InputEvent
	err := s.db.Get(&ev, `
		SELECT * FROM input_events
		WHERE source_type = $1 AND external_id = $2 AND organization_id = $3`,
		st, externalID, orgID)
	if err == sql.ErrNoRows {
		return models.InputEvent{}, storage.ErrNotFound
	}
	if err != nil {
		return models.InputEvent{}, fmt.Errorf("find input event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) GetInputEvent(id int64) (models.InputEvent, error) {
	var ev models.InputEvent
	err := s.db.Get(&ev, "SELECT * FROM input_events WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.InputEvent{}, storage.ErrNotFound
	}
	if err != nil {
		return models.InputEvent{}, fmt.Errorf("get input event %d: %w", id, err)
	}
	return ev, nil
}

func (s *PostgresStore) ListInputEvents(limit int) ([]models.InputEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	events := []models.InputEvent{}
	err := s.db.Select(&events, "SELECT * FROM input_events ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (s *PostgresStore) MarkInputEventProcessing(id int64) error {
	res, err := s.db.Exec(`
		UPDATE input_events
		SET status = 'processing',
		    processing_started_at = CURRENT_TIMESTAMP,
		    retry_count = CASE WHEN processing_started_at IS NULL THEN retry_count ELSE retry_count + 1 END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) FinishInputEvent(id int64, status models.EventStatus, errMsg string, results models.RunResults, taskIDs, nodeIDs models.Int64List) error {
	res, err := s.db.Exec(`
		UPDATE input_events
		SET status = $1,
		    processing_error = $2,
		    results = $3,
		    created_task_ids = $4,
		    created_node_ids = $5,
		    processing_completed_at = CURRENT_TIMESTAMP,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $6`,
		status, errMsg, results, taskIDs, nodeIDs, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpsertTask inserts or updates by (source, source_id, organization_id). The
// xmax check distinguishes a fresh insert from a conflict-triggered update.
func (s *PostgresStore) UpsertTask(t models.Task) (int64, bool, error) {
	var id int64
	var created bool
	err := s.db.QueryRowx(`
		INSERT INTO tasks
			(organization_id, user_id, title, description, assignee_name, assignee_email,
			 assignee_user_id, due_date, due_date_text, status, priority, source, source_id,
			 context, canvas_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (source, source_id, organization_id) DO UPDATE
		SET title = EXCLUDED.title,
		    description = EXCLUDED.description,
		    assignee_name = EXCLUDED.assignee_name,
		    assignee_email = EXCLUDED.assignee_email,
		    assignee_user_id = EXCLUDED.assignee_user_id,
		    due_date = EXCLUDED.due_date,
		    due_date_text = EXCLUDED.due_date_text,
		    priority = EXCLUDED.priority,
		    context = EXCLUDED.context,
		    canvas_id = EXCLUDED.canvas_id,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING id, (xmax = 0) AS created`,
		t.OrganizationID, t.UserID, t.Title, t.Description, t.AssigneeName, t.AssigneeEmail,
		t.AssigneeUserID, t.DueDate, t.DueDateText, t.Status, t.Priority, t.Source, t.SourceID,
		t.Context, t.CanvasID).Scan(&id, &created)
	if err != nil {
		return 0, false, fmt.Errorf("upsert task: %w", err)
	}
	return id, created, nil
}

func (s *PostgresStore) GetTask(id int64) (models.Task, error) {
	var t models.Task
	err := s.db.Get(&t, "SELECT * FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) ListTasks(organizationID int64) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks,
		"SELECT * FROM tasks WHERE organization_id = $1 ORDER BY created_at DESC", organizationID)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *PostgresStore) CreateNode(n models.Node) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO nodes (canvas_id, name, node_type, content, position_x, position_y)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		n.CanvasID, n.Name, n.NodeType, n.Content, n.PositionX, n.PositionY).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create node: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetNode(id int64) (models.Node, error) {
	var n models.Node
	err := s.db.Get(&n, "SELECT * FROM nodes WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Node{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Node{}, fmt.Errorf("get node %d: %w", id, err)
	}
	return n, nil
}

func (s *PostgresStore) GetCanvas(id int64) (models.Canvas, error) {
	var c models.Canvas
	err := s.db.Get(&c, "SELECT * FROM canvases WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Canvas{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Canvas{}, fmt.Errorf("get canvas %d: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) LinkTaskToNode(taskID, nodeID int64) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO task_node_links (task_id, node_id, link_type)
		VALUES ($1, $2, 'related')
		ON CONFLICT (task_id, node_id) DO NOTHING`,
		taskID, nodeID)
	if err != nil {
		return false, fmt.Errorf("link task %d to node %d: %w", taskID, nodeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) ListNodeLinks(taskID int64) ([]models.TaskNodeLink, error) {
	links := []models.TaskNodeLink{}
	err := s.db.Select(&links,
		"SELECT * FROM task_node_links WHERE task_id = $1", taskID)
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (s *PostgresStore) ListOrganizationMembers(organizationID int64) ([]models.Member, error) {
	members := []models.Member{}
	err := s.db.Select(&members,
		"SELECT * FROM organization_members WHERE organization_id = $1 ORDER BY user_id", organizationID)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *PostgresStore) GetMemberOrganization(userID int64) (int64, error) {
	var orgID int64
	err := s.db.Get(&orgID,
		"SELECT organization_id FROM organization_members WHERE user_id = $1 LIMIT 1", userID)
	if err == sql.ErrNoRows {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return orgID, nil
}

func (s *PostgresStore) GetProviderSettings(scope models.SettingsScope, ownerID int64) (models.ProviderSettings, error) {
	var ps models.ProviderSettings
	var err error
	switch scope {
	case models.OrganizationScope:
		err = s.db.Get(&ps,
			"SELECT * FROM provider_settings WHERE scope = $1 AND organization_id = $2", scope, ownerID)
	case models.UserScope:
		err = s.db.Get(&ps,
			"SELECT * FROM provider_settings WHERE scope = $1 AND user_id = $2", scope, ownerID)
	default:
		return models.ProviderSettings{}, fmt.Errorf("unknown settings scope '%s'", scope)
	}
	if err == sql.ErrNoRows {
		return models.ProviderSettings{}, storage.ErrNotFound
	}
	if err != nil {
		return models.ProviderSettings{}, fmt.Errorf("get provider settings: %w", err)
	}
	return ps, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
