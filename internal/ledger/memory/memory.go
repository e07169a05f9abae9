package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgerq/internal/core"
)

// Store keeps month ledgers in process memory.
type Store struct {
	mu       sync.Mutex
	months   map[core.MonthKey][]core.Expense
	archived map[core.MonthKey]bool
}

func New() *Store {
	return &Store{
		months:   make(map[core.MonthKey][]core.Expense),
		archived: make(map[core.MonthKey]bool),
	}
}

// NewFromFile seeds a store from lines of "YYYY-MM-DD;amount;description".
// Blank lines and lines starting with # are skipped; a missing file yields
// an empty store.
func NewFromFile(path string, categories *core.CategoryTable) (*Store, error) {
	s := New()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ";", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("seed line %d: want date;amount;description", lineNo)
		}
		d, err := core.ParseDate(parts[0])
		if err != nil {
			return nil, fmt.Errorf("seed line %d: %w", lineNo, err)
		}
		cents, err := core.ParseCents(parts[1])
		if err != nil || cents < 0 {
			return nil, fmt.Errorf("seed line %d: invalid amount %q", lineNo, parts[1])
		}
		desc := strings.TrimSpace(parts[2])
		e := core.Expense{
			ID:          uuid.NewString(),
			Date:        d,
			Description: desc,
			Amount:      core.Money{Cents: cents},
			CreatedAt:   d.Time,
		}
		if categories != nil {
			e.Category = categories.Categorize(desc)
		}
		s.months[e.Month()] = append(s.months[e.Month()], e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return s, nil
}

// Archive freezes a month explicitly.
func (s *Store) Archive(month core.MonthKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived[month] = true
}

func (s *Store) Load(_ context.Context, month core.MonthKey) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.months[month]), nil
}

func (s *Store) Append(_ context.Context, month core.MonthKey, e core.Expense) error {
	if e.Month() != month {
		return core.ErrMonthMismatch
	}
	if e.ID == "" {
		return fmt.Errorf("append: record has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.months[month] = append(s.months[month], e)
	return nil
}

// AppendBatch appends all records or none.
func (s *Store) AppendBatch(_ context.Context, month core.MonthKey, es []core.Expense) error {
	for _, e := range es {
		if e.Month() != month {
			return core.ErrMonthMismatch
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.months[month] = append(s.months[month], es...)
	return nil
}

func (s *Store) DeleteByIDs(_ context.Context, month core.MonthKey, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.months[month]
	kept := make([]core.Expense, 0, len(recs))
	removed := 0
	for _, r := range recs {
		if slices.Contains(ids, r.ID) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.months[month] = kept
	return removed, nil
}

func (s *Store) IsArchived(_ context.Context, month core.MonthKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archived[month], nil
}

func (s *Store) Months(_ context.Context) ([]core.MonthKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MonthKey, 0, len(s.months))
	for m, recs := range s.months {
		if len(recs) > 0 {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b core.MonthKey) int {
		if a.Before(b) {
			return -1
		}
		if b.Before(a) {
			return 1
		}
		return 0
	})
	return out, nil
}
