// Package correlate holds short-lived state shared between two separately
// scheduled pipeline runs: a pending format choice waiting on a button
// press, and a pending delete action bound to a delivered message. Tokens
// are consume-once so a stale button press can never replay a flow.
package correlate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// tokenLength is the number of hex characters kept from the digest.
// Callback payloads embed two tokens plus a tag and must stay under
// Telegram's 64-byte callback-data limit.
const tokenLength = 12

// PendingChoice is a format decision waiting on the user
type PendingChoice struct {
	URL       string
	ChatID    int64
	MessageID int
}

// PendingDelete identifies messages to remove when a delete control fires
type PendingDelete struct {
	ChatID    int64
	MessageID int
}

// ChoiceToken derives the deterministic token for a pending format choice
func ChoiceToken(url string) string {
	return derive("choice|" + url)
}

// DeleteToken derives the deterministic token for a pending delete action
func DeleteToken(chatID int64, messageID int) string {
	return derive(fmt.Sprintf("delete|%d|%d", chatID, messageID))
}

func derive(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:tokenLength]
}

// Store is a volatile consume-once token store shared by all in-flight
// requests. Entries live until taken or until process restart.
type Store struct {
	mu      sync.Mutex
	choices map[string]PendingChoice
	deletes map[string]PendingDelete
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		choices: make(map[string]PendingChoice),
		deletes: make(map[string]PendingDelete),
	}
}

// PutChoice registers a pending format choice and returns its token
func (s *Store) PutChoice(pc PendingChoice) string {
	token := ChoiceToken(pc.URL)
	s.mu.Lock()
	s.choices[token] = pc
	s.mu.Unlock()
	return token
}

// TakeChoice removes and returns the pending choice for token. Exactly one
// concurrent caller observes ok=true; a missing token is a normal outcome.
func (s *Store) TakeChoice(token string) (PendingChoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.choices[token]
	if ok {
		delete(s.choices, token)
	}
	return pc, ok
}

// PutDelete registers a pending delete action and returns its token
func (s *Store) PutDelete(pd PendingDelete) string {
	token := DeleteToken(pd.ChatID, pd.MessageID)
	s.mu.Lock()
	s.deletes[token] = pd
	s.mu.Unlock()
	return token
}

// TakeDelete removes and returns the pending delete for token
func (s *Store) TakeDelete(token string) (PendingDelete, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd, ok := s.deletes[token]
	if ok {
		delete(s.deletes, token)
	}
	return pd, ok
}
