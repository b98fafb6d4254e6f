package services

import "sync/atomic"

// ContextStore holds the text of the most recently loaded PDF. One store is
// created per process and shared by every handler.
//
// Set replaces the text wholesale and readers always observe a complete value,
// but nothing serialises uploads against each other or against chats: two
// concurrent uploads race and the last Set wins, and a chat started before an
// upload finishes keeps the text it already read.
type ContextStore struct {
	text atomic.Pointer[string]
}

func NewContextStore() *ContextStore {
	return &ContextStore{}
}

func (s *ContextStore) Set(text string) {
	s.text.Store(&text)
}

// Get returns the current text, or "" before the first successful load.
func (s *ContextStore) Get() string {
	if p := s.text.Load(); p != nil {
		return *p
	}
	return ""
}
