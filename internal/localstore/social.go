package localstore

import (
	"strings"
	"time"
)

// StoredComment is the local-mode comment shape. Unlike remote rows it keeps
// the author's email, since there is no user id to key on offline.
type StoredComment struct {
	ID        string    `json:"id,omitempty"`
	Content   string    `json:"content"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	CreatedAt time.Time `json:"created_at"`
}

// LoadComments returns the full comments namespace keyed by memorial key.
// Sequences are append-ordered oldest-first. Never fails.
func (s *Store) LoadComments() map[string][]StoredComment {
	comments := map[string][]StoredComment{}
	if !s.loadNamespace(recordComments, &comments) {
		return map[string][]StoredComment{}
	}
	if comments == nil {
		return map[string][]StoredComment{}
	}
	return comments
}

// SaveComments overwrites the full comments namespace.
func (s *Store) SaveComments(comments map[string][]StoredComment) error {
	return s.saveNamespace(recordComments, comments)
}

// AppendComment pushes a comment onto the key's sequence, rewriting the whole
// namespace.
func (s *Store) AppendComment(key string, comment StoredComment) error {
	comments := s.LoadComments()
	comments[key] = append(comments[key], comment)
	return s.SaveComments(comments)
}

// CommentsFor returns the key's append-ordered sequence.
func (s *Store) CommentsFor(key string) []StoredComment {
	return s.LoadComments()[key]
}

// LoadLikes returns the full likes namespace: memorial key to the unique
// lowercase emails that liked it. Never fails.
func (s *Store) LoadLikes() map[string][]string {
	likes := map[string][]string{}
	if !s.loadNamespace(recordLikes, &likes) {
		return map[string][]string{}
	}
	if likes == nil {
		return map[string][]string{}
	}
	return likes
}

// SaveLikes overwrites the full likes namespace.
func (s *Store) SaveLikes(likes map[string][]string) error {
	return s.saveNamespace(recordLikes, likes)
}

// ToggleLike flips membership of the email in the key's like set and reports
// the resulting liked state.
func (s *Store) ToggleLike(key, email string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	likes := s.LoadLikes()
	likedBy := likes[key]

	for index, existing := range likedBy {
		if existing == normalized {
			likes[key] = append(likedBy[:index:index], likedBy[index+1:]...)
			return false, s.SaveLikes(likes)
		}
	}

	likes[key] = append(likedBy, normalized)
	return true, s.SaveLikes(likes)
}

// HasLiked reports whether the email is in the key's like set.
func (s *Store) HasLiked(key, email string) bool {
	normalized := strings.ToLower(strings.TrimSpace(email))
	for _, existing := range s.LoadLikes()[key] {
		if existing == normalized {
			return true
		}
	}
	return false
}
