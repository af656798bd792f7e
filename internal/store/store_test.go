package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/codefionn/bookshelf/internal/book"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dune    = book.Book{ID: "a1", Title: "Dune", Authors: []string{"Frank Herbert"}}
	messiah = book.Book{ID: "b2", Title: "Dune Messiah", Authors: []string{"Frank Herbert"}}
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func TestRegisterSeedsDefaultLists(t *testing.T) {
	s := New()

	id, err := s.Register("alice", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, s.exists(id))
	assert.Equal(t, []string{ReadList, WantToReadList}, s.listNames(id))

	list, err := s.GetList(id, WantToReadList)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	s := New()

	first, err := s.Register("alice", "pw")
	require.NoError(t, err)

	_, err = s.Register("alice", "other")
	assert.ErrorIs(t, err, ErrUsernameConflict)

	id, err := s.Login("alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, first, id)
	assert.Equal(t, 1, s.Stats().Accounts)
}

func TestLogin(t *testing.T) {
	s := New()
	id, _ := s.Register("alice", "pw")

	got, err := s.Login("alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = s.Login("bob", "pw")
	assert.Equal(t, ErrInvalidUsername, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login("alice", "wrong")
	assert.Equal(t, "Invalid password", err.Error())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestConcreteScenarioIDs(t *testing.T) {
	s := New()
	a, err := s.Register("alice", "pw")
	require.NoError(t, err)
	b, err := s.Register("bob", "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	got, err := s.Login("alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestListLifecycle(t *testing.T) {
	s := New()
	id, _ := s.Register("alice", "pw")

	require.NoError(t, s.CreateList(id, "x"))
	assert.ErrorIs(t, s.CreateList(id, "x"), ErrListConflict)

	list, err := s.GetList(id, "x")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.AddToList(id, "x", dune))
	list, _ = s.GetList(id, "x")
	assert.Equal(t, []book.Book{dune}, list)

	require.NoError(t, s.RemoveFromList(id, "x", 0))
	list, _ = s.GetList(id, "x")
	assert.Empty(t, list)

	require.NoError(t, s.RemoveList(id, "x"))
	_, err = s.GetList(id, "x")
	assert.Equal(t, ErrNoSuchListName, err)
	assert.ErrorIs(t, err, ErrListNotFound)
}

func TestListsKeepDuplicatesInOrder(t *testing.T) {
	s := New()
	id, _ := s.Register("alice", "pw")

	require.NoError(t, s.AddToList(id, ReadList, dune))
	require.NoError(t, s.AddToList(id, ReadList, messiah))
	require.NoError(t, s.AddToList(id, ReadList, dune))

	list, _ := s.GetList(id, ReadList)
	assert.Equal(t, []book.Book{dune, messiah, dune}, list)

	require.NoError(t, s.RemoveFromList(id, ReadList, 1))
	list, _ = s.GetList(id, ReadList)
	assert.Equal(t, []book.Book{dune, dune}, list)
}

func TestListErrors(t *testing.T) {
	s := New()
	id, _ := s.Register("alice", "pw")

	assert.Equal(t, ErrListNotFound, s.AddToList(id, "missing", dune))
	assert.Equal(t, ErrListNotFound, s.RemoveList(id, "missing"))
	assert.Equal(t, ErrListNotFound, s.RemoveFromList(id, "missing", 0))

	require.NoError(t, s.AddToList(id, ReadList, dune))
	for _, idx := range []int{-1, 1, 7} {
		assert.Equal(t, ErrIndexOutOfRange, s.RemoveFromList(id, ReadList, idx), "index %d", idx)
	}
}

func TestAccountWithoutShelf(t *testing.T) {
	s, err := Restore([]Account{{ID: "x", Username: "ghost", Password: "pw"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, ErrNoLists, s.AddToList("x", ReadList, dune))
	assert.Equal(t, ErrNoLists, s.RemoveList("x", ReadList))
	_, err = s.GetList("x", ReadList)
	assert.ErrorIs(t, err, ErrListNotFound)

	require.NoError(t, s.CreateList("x", "fresh"))
	require.NoError(t, s.AddToList("x", "fresh", dune))
}

func TestGetListReturnsCopy(t *testing.T) {
	s := New()
	id, _ := s.Register("alice", "pw")
	require.NoError(t, s.AddToList(id, ReadList, dune))

	list, _ := s.GetList(id, ReadList)
	list[0] = messiah

	again, _ := s.GetList(id, ReadList)
	assert.Equal(t, dune, again[0])
}

func TestAddFriend(t *testing.T) {
	s := New()
	a, _ := s.Register("alice", "pw")
	_, _ = s.Register("bob", "pw")

	require.NoError(t, s.AddFriend(a, "bob"))
	require.NoError(t, s.AddFriend(a, "bob"))
	assert.Equal(t, []string{"bob"}, s.friends(a))

	assert.ErrorIs(t, s.AddFriend(a, "carol"), ErrUserNotFound)
	assert.True(t, IsNotFound(s.AddFriend(a, "carol")))
}

func TestRecommendBookIsIdempotent(t *testing.T) {
	s := New()
	id, _ := s.Register("alice", "pw")

	s.RecommendBook(id, dune)
	s.RecommendBook(id, dune)
	s.RecommendBook(id, messiah)

	assert.Equal(t, []book.Book{dune, messiah}, s.UserRecommendations(id))
}

func TestFriendsRecommendations(t *testing.T) {
	s := New()
	a, _ := s.Register("alice", "pw")
	b, _ := s.Register("bob", "pw")
	_, _ = s.Register("carol", "pw")

	require.NoError(t, s.AddFriend(a, "carol"))
	require.NoError(t, s.AddFriend(a, "bob"))
	s.RecommendBook(b, dune)

	recs := s.FriendsRecommendations(a)
	assert.Equal(t, []string{"carol", "bob"}, recs.Order)
	assert.Equal(t, []book.Book{dune}, recs.ByFriend["bob"])

	carol, ok := recs.ByFriend["carol"]
	assert.True(t, ok, "friends without recommendations are present")
	assert.Empty(t, carol)
}

func TestUnknownAccountPanics(t *testing.T) {
	s := New()
	assert.PanicsWithValue(t, `store: unknown account id "nope"`, func() {
		_ = s.CreateList("nope", "x")
	})
	assert.Panics(t, func() { s.RecommendBook("nope", dune) })
	assert.False(t, s.exists("nope"))
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := New(sequentialIDs())
	id, _ := s.Register("alice", "pw")
	require.NoError(t, s.AddToList(id, ReadList, dune))

	accounts, shelves := s.Snapshot()
	require.Len(t, accounts, 1)
	accounts[0].Friends = append(accounts[0].Friends, "mallory")
	shelves[id][ReadList][0] = messiah

	again, shelvesAgain := s.Snapshot()
	assert.Empty(t, again[0].Friends)
	assert.Equal(t, dune, shelvesAgain[id][ReadList][0])
}

func TestRestoreRoundTrip(t *testing.T) {
	s := New(sequentialIDs())
	a, _ := s.Register("alice", "pw")
	_, _ = s.Register("bob", "pw")
	require.NoError(t, s.AddFriend(a, "bob"))
	require.NoError(t, s.AddToList(a, WantToReadList, dune))

	accounts, shelves := s.Snapshot()
	restored, err := Restore(accounts, shelves)
	require.NoError(t, err)

	id, err := restored.Login("alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, a, id)
	assert.Equal(t, []string{"bob"}, restored.friends(a))

	list, err := restored.GetList(a, WantToReadList)
	require.NoError(t, err)
	assert.Equal(t, []book.Book{dune}, list)

	gotAccounts, gotShelves := restored.Snapshot()
	assert.Equal(t, accounts, gotAccounts)
	assert.Equal(t, shelves, gotShelves)
}

func TestRestoreRejectsDuplicates(t *testing.T) {
	_, err := Restore([]Account{{ID: "1", Username: "a"}, {ID: "1", Username: "b"}}, nil)
	assert.Error(t, err)

	_, err = Restore([]Account{{ID: "1", Username: "a"}, {ID: "2", Username: "a"}}, nil)
	assert.Error(t, err)

	_, err = Restore([]Account{{Username: "a"}}, nil)
	assert.Error(t, err)
}

func TestEmptyStoreSnapshot(t *testing.T) {
	accounts, shelves := New().Snapshot()
	assert.Empty(t, accounts)
	assert.Empty(t, shelves)
	assert.Equal(t, Stats{}, New().Stats())
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	id, _ := s.Register("alice", "pw")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.AddToList(id, ReadList, book.Book{ID: fmt.Sprint(i)})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Snapshot()
		}()
	}
	wg.Wait()

	list, _ := s.GetList(id, ReadList)
	assert.Len(t, list, 20)
}

func TestStats(t *testing.T) {
	s := New()
	a, _ := s.Register("alice", "pw")
	_, _ = s.Register("bob", "pw")
	require.NoError(t, s.CreateList(a, "x"))

	assert.Equal(t, Stats{Accounts: 2, Lists: 5}, s.Stats())
}

func TestErrorTexts(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrUsernameConflict, "This username is already in use"},
		{ErrListConflict, "List name already exists"},
		{ErrNoLists, "This user doesn't have any lists"},
		{ErrNoSuchListName, "This user doesn't have such list name"},
		{ErrUserNotFound, "Username doesn't exist"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
	assert.True(t, errors.Is(ErrNoLists, ErrListNotFound))
}
