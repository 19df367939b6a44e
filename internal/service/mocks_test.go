package service

import (
	"context"
	"sort"
	"sync"

	"github.com/hkids/catalog/internal/domain"
	"github.com/hkids/catalog/internal/repository"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// mockUserRepository is an in-memory implementation of repository.UserRepository.
type mockUserRepository struct {
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	result := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// mockBookRepository is an in-memory implementation of repository.BookRepository.
type mockBookRepository struct {
	books     map[int64]*domain.Book
	nextID    int64
	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func newMockBookRepository() *mockBookRepository {
	return &mockBookRepository{
		books:  make(map[int64]*domain.Book),
		nextID: 1,
	}
}

func (m *mockBookRepository) Create(ctx context.Context, book *domain.Book) error {
	if m.createErr != nil {
		return m.createErr
	}
	book.ID = m.nextID
	m.nextID++
	copied := *book
	m.books[book.ID] = &copied
	return nil
}

func (m *mockBookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if b, ok := m.books[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockBookRepository) ListPublished(ctx context.Context, filter repository.BookFilter) ([]*domain.Book, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*domain.Book
	for _, b := range m.books {
		if !b.IsPublished {
			continue
		}
		if filter.AgeGroup != "" && b.AgeGroup != filter.AgeGroup {
			continue
		}
		if filter.Category != "" && b.Category != filter.Category {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *mockBookRepository) ListAll(ctx context.Context) ([]*domain.Book, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*domain.Book
	for _, b := range m.books {
		copied := *b
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *mockBookRepository) Update(ctx context.Context, book *domain.Book) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.books[book.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *book
	m.books[book.ID] = &copied
	return nil
}

func (m *mockBookRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.books[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *mockBookRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(m.books)), nil
}

// =============================================================================
// Mock Cleanup Queue
// =============================================================================

// recordingCleanup records every reference handed to Enqueue.
type recordingCleanup struct {
	mu   sync.Mutex
	refs []string
}

func (r *recordingCleanup) Enqueue(refs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, refs...)
}

func (r *recordingCleanup) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refs...)
}
