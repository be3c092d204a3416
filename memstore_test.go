package main

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the handler tests. When forcedErr
// is set every method fails with it, which exercises the 500 mappings.
type memStore struct {
	mu            sync.Mutex
	users         map[int]*User
	limits        map[int]Limits
	expenses      map[int]Expense
	nextUserID    int
	nextExpenseID int
	clock         time.Time
	forcedErr     error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int]*User{},
		limits:   map[int]Limits{},
		expenses: map[int]Expense{},
		clock:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) CreateUser(_ context.Context, username, passwordDigest, fullName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return 0, s.forcedErr
	}
	for _, u := range s.users {
		if u.Username == username {
			return 0, ErrDuplicateUsername
		}
	}
	s.nextUserID++
	s.users[s.nextUserID] = &User{
		ID:       s.nextUserID,
		Username: username,
		Password: passwordDigest,
		FullName: fullName,
	}
	s.limits[s.nextUserID] = Limits{}
	return s.nextUserID, nil
}

func (s *memStore) GetUserByCredentials(_ context.Context, username, passwordDigest string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return nil, s.forcedErr
	}
	for _, u := range s.users {
		if u.Username == username && u.Password == passwordDigest {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) CreateExpense(_ context.Context, e Expense) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return 0, s.forcedErr
	}
	s.nextExpenseID++
	e.ID = s.nextExpenseID
	e.DateCreated = s.clock
	s.clock = s.clock.Add(time.Minute)
	s.expenses[e.ID] = e
	return e.ID, nil
}

func (s *memStore) ListExpenses(_ context.Context, userID int) ([]Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return nil, s.forcedErr
	}
	expenses := []Expense{}
	for _, e := range s.expenses {
		if e.UserID == userID {
			expenses = append(expenses, e)
		}
	}
	sort.Slice(expenses, func(i, j int) bool {
		return expenses[i].DateCreated.After(expenses[j].DateCreated)
	})
	return expenses, nil
}

func (s *memStore) DeleteExpense(_ context.Context, expenseID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return s.forcedErr
	}
	if _, ok := s.expenses[expenseID]; !ok {
		return ErrNotFound
	}
	delete(s.expenses, expenseID)
	return nil
}

func (s *memStore) SetLimits(_ context.Context, userID int, l Limits) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return s.forcedErr
	}
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	s.limits[userID] = l
	return nil
}

func (s *memStore) GetLimits(_ context.Context, userID int) (Limits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return Limits{}, s.forcedErr
	}
	if _, ok := s.users[userID]; !ok {
		return Limits{}, ErrNotFound
	}
	return s.limits[userID], nil
}

func (s *memStore) GetStats(_ context.Context, userID int) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return Stats{}, s.forcedErr
	}
	var stats Stats
	for _, e := range s.expenses {
		if e.UserID != userID {
			continue
		}
		amount := float64(e.Amount)
		if stats.Count == 0 || amount < stats.Minimum {
			stats.Minimum = amount
		}
		if amount > stats.Maximum {
			stats.Maximum = amount
		}
		stats.Count++
		stats.Total += amount
	}
	if stats.Count > 0 {
		stats.Average = stats.Total / float64(stats.Count)
	}
	return stats, nil
}

func (s *memStore) GetCategoryTotals(_ context.Context, userID int) ([]CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return nil, s.forcedErr
	}
	byCategory := map[string]int{}
	for _, e := range s.expenses {
		if e.UserID == userID {
			byCategory[e.Category] += e.Amount
		}
	}
	totals := []CategoryTotal{}
	for category, total := range byCategory {
		totals = append(totals, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Category < totals[j].Category
	})
	return totals, nil
}

func (s *memStore) CategorySpent(_ context.Context, userID int, category string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forcedErr != nil {
		return 0, s.forcedErr
	}
	spent := 0
	for _, e := range s.expenses {
		if e.UserID == userID && strings.EqualFold(e.Category, category) {
			spent += e.Amount
		}
	}
	return spent, nil
}
