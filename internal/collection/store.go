// Package collection holds the working set of article records and the
// selection pointer, and derives filtered views over them.
package collection

import (
	"fmt"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/models"
)

// NoSelection is the selected index when nothing is selected.
const NoSelection = -1

// Store is an ordered collection with a single selection pointer.
// The selection is always NoSelection or a valid index. Store is not safe
// for concurrent use; its owner serializes access.
type Store struct {
	records  []models.Article
	selected int
}

// New returns an empty store.
func New() *Store {
	return &Store{selected: NoSelection}
}

// ReplaceAll swaps in records and clears the selection.
func (s *Store) ReplaceAll(records []models.Article) {
	s.records = make([]models.Article, len(records))
	for i, r := range records {
		s.records[i] = r.Clone()
	}
	s.selected = NoSelection
}

// InsertAtFront prepends r and selects it.
func (s *Store) InsertAtFront(r models.Article) {
	s.records = append([]models.Article{r.Clone()}, s.records...)
	s.selected = 0
}

// Append adds r at the end without touching the selection.
func (s *Store) Append(r models.Article) {
	s.records = append(s.records, r.Clone())
}

// RemoveAt deletes the record at i and clears the selection.
func (s *Store) RemoveAt(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.records = append(s.records[:i:i], s.records[i+1:]...)
	s.selected = NoSelection
	return nil
}

// Select points the selection at i.
func (s *Store) Select(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.selected = i
	return nil
}

// Selected returns a copy of the selected record and its index.
func (s *Store) Selected() (models.Article, int, error) {
	if s.selected == NoSelection {
		return models.Article{}, NoSelection, fmt.Errorf("%w: no article selected", apperr.ErrInvalidSelection)
	}
	return s.records[s.selected].Clone(), s.selected, nil
}

// SelectedIndex returns the selected index or NoSelection.
func (s *Store) SelectedIndex() int {
	return s.selected
}

// Update applies fn to the record at i in place.
func (s *Store) Update(i int, fn func(*models.Article)) error {
	if err := s.check(i); err != nil {
		return err
	}
	fn(&s.records[i])
	return nil
}

// At returns a copy of the record at i.
func (s *Store) At(i int) (models.Article, error) {
	if err := s.check(i); err != nil {
		return models.Article{}, err
	}
	return s.records[i].Clone(), nil
}

// IndexOf returns the index of the record with id, or NoSelection.
func (s *Store) IndexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return NoSelection
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Records returns a deep copy of all records in order.
func (s *Store) Records() []models.Article {
	out := make([]models.Article, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Filter returns the indices matching query; see Filter.
func (s *Store) Filter(query string) []int {
	return Filter(s.records, query)
}

func (s *Store) check(i int) error {
	if i < 0 || i >= len(s.records) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", apperr.ErrInvalidSelection, i, len(s.records))
	}
	return nil
}
