// Package store holds accounts, friend relations, named book lists and
// recommendations. Every exported method of Store runs under one mutex, so
// handlers that read and then write never interleave with each other or with
// a snapshot.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/google/uuid"
)

// Default lists seeded for every new account.
const (
	WantToReadList = "want-to-read"
	ReadList       = "read"
)

// Account is one registered user. The JSON shape is the users artifact format.
type Account struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	Friends     []string    `json:"friends"`
	Recommended []book.Book `json:"recommendedBooks"`
}

func (a Account) clone() Account {
	a.Friends = append(make([]string, 0, len(a.Friends)), a.Friends...)
	a.Recommended = append(make([]book.Book, 0, len(a.Recommended)), a.Recommended...)
	return a
}

// ShelfMap maps an account id to its named lists.
type ShelfMap map[string]map[string][]book.Book

func (m ShelfMap) clone() ShelfMap {
	out := make(ShelfMap, len(m))
	for id, lists := range m {
		copied := make(map[string][]book.Book, len(lists))
		for name, books := range lists {
			copied[name] = append(make([]book.Book, 0, len(books)), books...)
		}
		out[id] = copied
	}
	return out
}

// Recommendations lists what each friend recommends. Friends appear in
// Order in the sequence they were added; ByFriend has an entry (possibly
// empty) for every one of them.
type Recommendations struct {
	Order    []string
	ByFriend map[string][]book.Book
}

// Stats is a point-in-time count of stored entities.
type Stats struct {
	Accounts int `json:"accounts"`
	Lists    int `json:"lists"`
}

// Store is the in-memory source of truth.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*Account
	byName   map[string]*Account
	order    []string
	shelves  ShelfMap

	hasher PasswordHasher
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithPasswordHasher sets how passwords are stored. The default keeps them as given.
func WithPasswordHasher(h PasswordHasher) Option {
	return func(s *Store) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithIDGenerator replaces the account id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[string]*Account),
		byName:   make(map[string]*Account),
		shelves:  make(ShelfMap),
		hasher:   PlainPasswords{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore builds a Store from previously snapshotted contents.
func Restore(accounts []Account, shelves ShelfMap, opts ...Option) (*Store, error) {
	s := New(opts...)
	for _, a := range accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("account %q has no id", a.Username)
		}
		if _, dup := s.accounts[a.ID]; dup {
			return nil, fmt.Errorf("duplicate account id %q", a.ID)
		}
		if _, dup := s.byName[a.Username]; dup {
			return nil, fmt.Errorf("duplicate username %q", a.Username)
		}
		acc := a.clone()
		s.accounts[acc.ID] = &acc
		s.byName[acc.Username] = &acc
		s.order = append(s.order, acc.ID)
	}
	if shelves != nil {
		s.shelves = shelves.clone()
	}
	return s, nil
}

// Register creates an account with the two default lists and returns its id.
func (s *Store) Register(username, password string) (string, error) {
	stored, err := s.hasher.Hash(password)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[username]; taken {
		return "", ErrUsernameConflict
	}

	acc := &Account{
		ID:          s.newID(),
		Username:    username,
		Password:    stored,
		Friends:     []string{},
		Recommended: []book.Book{},
	}
	s.accounts[acc.ID] = acc
	s.byName[username] = acc
	s.order = append(s.order, acc.ID)
	s.shelves[acc.ID] = map[string][]book.Book{
		WantToReadList: {},
		ReadList:       {},
	}
	return acc.ID, nil
}

// Login returns the id of the account matching username and password.
func (s *Store) Login(username, password string) (string, error) {
	s.mu.Lock()
	acc, ok := s.byName[username]
	var id, stored string
	if ok {
		id, stored = acc.ID, acc.Password
	}
	s.mu.Unlock()

	if !ok {
		return "", ErrInvalidUsername
	}
	if !s.hasher.Verify(stored, password) {
		return "", ErrInvalidPassword
	}
	return id, nil
}

// exists reports whether id names an account.
func (s *Store) exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[id]
	return ok
}

// GetList returns a copy of the named list.
func (s *Store) GetList(id, name string) ([]book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustAccount(id)
	books, ok := s.shelves[id][name]
	if !ok {
		return nil, ErrNoSuchListName
	}
	return slices.Clone(books), nil
}

// listNames returns the names of the account's lists, sorted.
func (s *Store) listNames(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustAccount(id)
	names := make([]string, 0, len(s.shelves[id]))
	for name := range s.shelves[id] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CreateList adds an empty list.
func (s *Store) CreateList(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mustAccount(id)
	lists, ok := s.shelves[id]
	if !ok {
		lists = make(map[string][]book.Book)
		s.shelves[id] = lists
	}
	if _, exists := lists[name]; exists {
		return ErrListConflict
	}
	lists[name] = []book.Book{}
	return nil
}

// RemoveList deletes a list and its books.
func (s *Store) RemoveList(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists, err := s.listsOf(id, name)
	if err != nil {
		return err
	}
	delete(lists, name)
	return nil
}

// AddToList appends b to the named list. Duplicates are kept.
func (s *Store) AddToList(id, name string, b book.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists, err := s.listsOf(id, name)
	if err != nil {
		return err
	}
	lists[name] = append(lists[name], b)
	return nil
}

// RemoveFromList removes the book at index from the named list.
func (s *Store) RemoveFromList(id, name string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists, err := s.listsOf(id, name)
	if err != nil {
		return err
	}
	books := lists[name]
	if index < 0 || index >= len(books) {
		return ErrIndexOutOfRange
	}
	lists[name] = slices.Delete(books, index, index+1)
	return nil
}

// AddFriend adds friendUsername to the account's friends. Adding an existing
// friend again is a no-op.
func (s *Store) AddFriend(id, friendUsername string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.mustAccount(id)
	friend, ok := s.byName[friendUsername]
	if !ok {
		return ErrUserNotFound
	}
	if slices.Contains(acc.Friends, friend.Username) {
		return nil
	}
	acc.Friends = append(acc.Friends, friend.Username)
	return nil
}

// friends returns the account's friends in the order they were added.
func (s *Store) friends(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mustAccount(id).Friends)
}

// RecommendBook adds b to the account's recommendations unless an equal
// book is already there.
func (s *Store) RecommendBook(id string, b book.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.mustAccount(id)
	if slices.ContainsFunc(acc.Recommended, b.Equal) {
		return
	}
	acc.Recommended = append(acc.Recommended, b)
}

// UserRecommendations returns the account's own recommendations.
func (s *Store) UserRecommendations(id string) []book.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mustAccount(id).Recommended)
}

// FriendsRecommendations collects the recommendations of every friend.
func (s *Store) FriendsRecommendations(id string) Recommendations {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.mustAccount(id)
	recs := Recommendations{
		Order:    slices.Clone(acc.Friends),
		ByFriend: make(map[string][]book.Book, len(acc.Friends)),
	}
	for _, name := range acc.Friends {
		books := []book.Book{}
		if friend, ok := s.byName[name]; ok {
			books = slices.Clone(friend.Recommended)
		}
		recs.ByFriend[name] = books
	}
	return recs
}

// Snapshot returns deep copies of all accounts, in registration order, and
// of the shelf map.
func (s *Store) Snapshot() ([]Account, ShelfMap) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]Account, 0, len(s.order))
	for _, id := range s.order {
		accounts = append(accounts, s.accounts[id].clone())
	}
	return accounts, s.shelves.clone()
}

// Stats counts accounts and lists.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Accounts: len(s.accounts)}
	for _, lists := range s.shelves {
		st.Lists += len(lists)
	}
	return st
}

// listsOf resolves the lists of id that contain name.
func (s *Store) listsOf(id, name string) (map[string][]book.Book, error) {
	s.mustAccount(id)
	lists, ok := s.shelves[id]
	if !ok {
		return nil, ErrNoLists
	}
	if _, ok := lists[name]; !ok {
		return nil, ErrListNotFound
	}
	return lists, nil
}

// mustAccount panics for ids that never came out of Register or Login.
func (s *Store) mustAccount(id string) *Account {
	acc, ok := s.accounts[id]
	if !ok {
		panic(fmt.Sprintf("store: unknown account id %q", id))
	}
	return acc
}

// IsNotFound reports whether err is one of the recoverable lookup failures.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrListNotFound) || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrIndexOutOfRange)
}
