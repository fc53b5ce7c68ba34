// Package models defines the data types shared across the daemon's services.
package models

// Task is a single to-do item mirrored from the remote tracker.
// Identity is the tracker-assigned ID.
type Task struct {
	ID      string `json:"id" yaml:"id"`
	Content string `json:"content" yaml:"content"`
}

// Project is a read-only mirror of a remote tracker project. The project
// list is refreshed wholesale on fetch; there are no partial updates.
type Project struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
