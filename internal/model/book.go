package model

import "time"

// Book is a registry entry for one book database.
type Book struct {
	Base
	DisplayName     string
	RootAccountUID  string
	RootTemplateUID string
	SourceURI       string
	Active          bool
	LastSync        time.Time
}

// NewBook creates an unsaved, inactive book.
func NewBook(rootAccountUID string) *Book {
	return &Book{Base: NewBase(), RootAccountUID: rootAccountUID, LastSync: time.Now().UTC()}
}
