package storage

import (
	"github.com/pkg/errors"

	"github.com/hadiudoit11/merlin/pkg/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence operations for the input pipeline.
type Store interface {
	// Transaction control
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Input event operations. CreateInputEvent enforces at-most-one event
	// per (source_type, external_id, organization) - on a duplicate delivery
	// it returns the existing event with created=false.
	CreateInputEvent(ev models.InputEvent) (models.InputEvent, bool, error)
	GetInputEvent(id int64) (models.InputEvent, error)
	ListInputEvents(limit int) ([]models.InputEvent, error)
	MarkInputEventProcessing(id int64) error
	FinishInputEvent(id int64, status models.EventStatus, errMsg string, results models.RunResults, taskIDs, nodeIDs models.Int64List) error

	// Task operations. UpsertTask inserts or updates by
	// (source, source_id, organization) and reports create-vs-update.
	UpsertTask(t models.Task) (int64, bool, error)
	GetTask(id int64) (models.Task, error)
	ListTasks(organizationID int64) ([]models.Task, error)

	// Node operations
	CreateNode(n models.Node) (int64, error)
	GetNode(id int64) (models.Node, error)
	GetCanvas(id int64) (models.Canvas, error)

	// LinkTaskToNode creates a task-node link row; linking twice is a no-op.
	LinkTaskToNode(taskID, nodeID int64) (bool, error)
	ListNodeLinks(taskID int64) ([]models.TaskNodeLink, error)

	// Organization operations
	ListOrganizationMembers(organizationID int64) ([]models.Member, error)
	GetMemberOrganization(userID int64) (int64, error)

	// Provider settings for the credential resolver
	GetProviderSettings(scope models.SettingsScope, ownerID int64) (models.ProviderSettings, error)
}
