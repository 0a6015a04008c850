package models

import "time"

// Task is the minimal surface of the record-management module that the
// attachment broker authorizes against (assignee-or-elevated). The full task
// CRUD lives outside this service.
type Task struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	Title  string `json:"title" gorm:"size:256"`
	Status string `json:"status" gorm:"size:24;index"`

	AssigneeID  *uint `json:"assigneeID" gorm:"index"`
	CreatedByID uint  `json:"createdByID" gorm:"index"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
