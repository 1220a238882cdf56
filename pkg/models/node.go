package models

import "time"

// Node is a canvas artifact. The pipeline only ever creates and links nodes,
// it never deletes them.
type Node struct {
	ID        int64     `json:"id" db:"id"`
	CanvasID  int64     `json:"canvas_id" db:"canvas_id"`
	Name      string    `json:"name" db:"name"`
	NodeType  string    `json:"node_type" db:"node_type"` // e.g. "doc"
	Content   string    `json:"content,omitempty" db:"content"`
	PositionX int       `json:"position_x" db:"position_x"`
	PositionY int       `json:"position_y" db:"position_y"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Canvas is the board nodes live on. Only existence checks are needed here;
// canvas CRUD belongs to the canvas collaborator.
type Canvas struct {
	ID             int64     `json:"id" db:"id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TaskNodeLink relates a task to a canvas node (many-to-many).
type TaskNodeLink struct {
	TaskID    int64     `json:"task_id" db:"task_id"`
	NodeID    int64     `json:"node_id" db:"node_id"`
	LinkType  string    `json:"link_type" db:"link_type"` // currently always "related"
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
