package bot

import "sync"

// msgRef identifies one message in one chat.
type msgRef struct {
	chatID    int64
	messageID int
}

// SuppressedSet tracks inline keyboards that were retired after a terminal
// action. Presses on them are acknowledged and otherwise ignored.
type SuppressedSet struct {
	mu   sync.Mutex
	refs map[msgRef]struct{}
}

// NewSuppressedSet returns an empty set.
func NewSuppressedSet() *SuppressedSet {
	return &SuppressedSet{refs: make(map[msgRef]struct{})}
}

// Add marks the message as retired.
func (s *SuppressedSet) Add(chatID int64, messageID int) {
	s.mu.Lock()
	s.refs[msgRef{chatID, messageID}] = struct{}{}
	s.mu.Unlock()
}

// Contains reports whether the message was retired.
func (s *SuppressedSet) Contains(chatID int64, messageID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refs[msgRef{chatID, messageID}]
	return ok
}

// FeedbackCache holds at most one pending feedback text per chat. A newer
// candidate overwrites the older one; confirming consumes the entry.
type FeedbackCache struct {
	mu      sync.Mutex
	pending map[int64]string
}

// NewFeedbackCache returns an empty cache.
func NewFeedbackCache() *FeedbackCache {
	return &FeedbackCache{pending: make(map[int64]string)}
}

// Put stores the candidate text for the chat, replacing any older one.
func (f *FeedbackCache) Put(chatID int64, text string) {
	f.mu.Lock()
	f.pending[chatID] = text
	f.mu.Unlock()
}

// Take removes and returns the pending text.
func (f *FeedbackCache) Take(chatID int64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.pending[chatID]
	if ok {
		delete(f.pending, chatID)
	}
	return text, ok
}

// Discard drops the pending text and reports whether one existed.
func (f *FeedbackCache) Discard(chatID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[chatID]
	delete(f.pending, chatID)
	return ok
}
