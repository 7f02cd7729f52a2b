// Package file is a JSON-file meeting store. It backs deployments without
// MongoDB and serves as the automatic fallback when the database is
// unreachable.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/domain"
	"github.com/aousabdo/meetingsage/internal/ports"
)

const (
	meetingsFile = "meetings.json"
	usersFile    = "users.json"
)

// Store keeps meetings and users in two JSON files under a data directory.
// All operations rewrite the whole file; fine for a personal deployment.
type Store struct {
	mu       sync.Mutex
	dir      string
	meetings map[string]domain.Meeting
	users    map[string]domain.User
	log      zerolog.Logger
}

func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %q: %w", dir, err)
	}
	s := &Store{
		dir:      dir,
		meetings: map[string]domain.Meeting{},
		users:    map[string]domain.User{},
		log:      log.With().Str("component", "filestore").Logger(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	if err := readJSON(filepath.Join(s.dir, meetingsFile), &s.meetings); err != nil {
		return fmt.Errorf("loading meetings: %w", err)
	}
	if err := readJSON(filepath.Join(s.dir, usersFile), &s.users); err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	// Older files may carry statuses from before validation existed.
	for id, m := range s.meetings {
		for i, item := range m.ActionItems {
			m.ActionItems[i].Status = domain.CoerceActionItemStatus(string(item.Status))
		}
		s.meetings[id] = m
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func writeJSON(path string, in any) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) flushMeetings() error {
	return writeJSON(filepath.Join(s.dir, meetingsFile), s.meetings)
}

func (s *Store) flushUsers() error {
	return writeJSON(filepath.Join(s.dir, usersFile), s.users)
}

func (s *Store) CreateMeeting(_ context.Context, m domain.Meeting) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = uuid.NewString()
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	for i, item := range m.ActionItems {
		m.ActionItems[i].Status = domain.CoerceActionItemStatus(string(item.Status))
	}

	s.meetings[m.ID] = m
	if err := s.flushMeetings(); err != nil {
		delete(s.meetings, m.ID)
		return "", fmt.Errorf("persisting meeting: %w", err)
	}
	return m.ID, nil
}

func (s *Store) Meeting(_ context.Context, id string) (domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, ports.ErrNotFound
	}
	return m, nil
}

func (s *Store) UpdateMeeting(_ context.Context, id string, upd domain.MeetingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.meetings[id]
	if !ok {
		return ports.ErrNotFound
	}

	if upd.Title != nil {
		m.Title = *upd.Title
	}
	if upd.Transcript != nil {
		m.Transcript = *upd.Transcript
	}
	if upd.Summary != nil {
		m.Summary = *upd.Summary
	}
	if upd.ActionItems != nil {
		items := *upd.ActionItems
		for i, item := range items {
			items[i].Status = domain.CoerceActionItemStatus(string(item.Status))
		}
		m.ActionItems = items
	}
	if upd.Participants != nil {
		m.Participants = *upd.Participants
	}
	if upd.Duration != nil {
		m.Duration = *upd.Duration
	}
	m.UpdatedAt = time.Now().UTC()

	s.meetings[id] = m
	return s.flushMeetings()
}

func (s *Store) DeleteMeeting(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.meetings, id)
	return s.flushMeetings()
}

func (s *Store) MeetingsByUser(_ context.Context, userID string) ([]domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.Meeting
	for _, m := range s.meetings {
		if m.UserID == userID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return "", fmt.Errorf("username %q already taken", u.Username)
		}
	}

	u.ID = uuid.NewString()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	if err := s.flushUsers(); err != nil {
		delete(s.users, u.ID)
		return "", fmt.Errorf("persisting user: %w", err)
	}
	return u.ID, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, ports.ErrNotFound
}

func (s *Store) TouchLogin(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ports.ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	u.UpdatedAt = now
	s.users[userID] = u
	return s.flushUsers()
}

func (s *Store) Close(context.Context) error { return nil }
