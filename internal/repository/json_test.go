package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

const (
	tokenA = "0x1111111111111111111111111111111111111111"
	tokenB = "0x2222222222222222222222222222222222222222"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(filepath.Join(t.TempDir(), "data", "subscriptions.json"), logger.NewNop())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustLoad(t *testing.T, s *JSONStore) []models.Subscription {
	t.Helper()
	subs, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return subs
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	subs := mustLoad(t, s)
	if len(subs) != 0 {
		t.Errorf("len = %d, want 0", len(subs))
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Load(); !errors.Is(err, ErrCorruptRegistry) {
		t.Fatalf("Load error = %v, want ErrCorruptRegistry", err)
	}
	// a corrupt registry must not be overwritten by a mutation
	if err := s.AddSubscription(tokenA, "u1"); !errors.Is(err, ErrCorruptRegistry) {
		t.Fatalf("AddSubscription error = %v, want ErrCorruptRegistry", err)
	}
	data, _ := os.ReadFile(s.Path())
	if string(data) != "{not json" {
		t.Errorf("registry was rewritten: %q", data)
	}
}

func TestAddSubscriptionAndLookup(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddSubscription(tokenA, "u1"); err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}

	exists, err := s.Exists(tokenA)
	if err != nil || !exists {
		t.Errorf("Exists(tokenA) = %v, %v; want true", exists, err)
	}
	exists, _ = s.Exists(tokenB)
	if exists {
		t.Error("Exists(tokenB) = true, want false")
	}

	subscribed, _ := s.IsSubscribed(tokenA, "u1")
	if !subscribed {
		t.Error("IsSubscribed(tokenA, u1) = false")
	}
	subscribed, _ = s.IsSubscribed(tokenA, "u2")
	if subscribed {
		t.Error("IsSubscribed(tokenA, u2) = true")
	}
	subscribed, _ = s.IsSubscribed(tokenB, "u1")
	if subscribed {
		t.Error("IsSubscribed(tokenB, u1) = true")
	}
}

func TestExists_CaseSensitive(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddSubscription("0xAbC0000000000000000000000000000000000000", "u1"); err != nil {
		t.Fatal(err)
	}
	exists, _ := s.Exists("0xabc0000000000000000000000000000000000000")
	if exists {
		t.Error("token match must be exact")
	}
}

func TestSubscribersOf_Absent(t *testing.T) {
	s := newTestStore(t)
	users, ok, err := s.SubscribersOf(tokenA)
	if err != nil {
		t.Fatal(err)
	}
	if ok || users != nil {
		t.Errorf("SubscribersOf = %v, %v; want nil, false", users, ok)
	}
}

func TestAddUser_AppendsWithoutDedup(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddSubscription(tokenA, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUser(tokenA, "u2"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddUser(tokenA, "u2"); err != nil {
		t.Fatal(err)
	}

	users, ok, err := s.SubscribersOf(tokenA)
	if err != nil || !ok {
		t.Fatalf("SubscribersOf = %v, %v", ok, err)
	}
	want := []string{"u1", "u2", "u2"}
	if !reflect.DeepEqual(users, want) {
		t.Errorf("users = %v, want %v", users, want)
	}
}

func TestAddUser_UnknownTokenIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddUser(tokenA, "u1"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("no-op AddUser should not write the registry")
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	_ = s.AddSubscription(tokenA, "u1")
	_ = s.AddSubscription(tokenB, "u2")

	if err := s.Remove(tokenA); err != nil {
		t.Fatal(err)
	}
	subs := mustLoad(t, s)
	if len(subs) != 1 || subs[0].TokenAddress != tokenB {
		t.Errorf("registry = %+v, want only tokenB", subs)
	}

	// removing again is a no-op
	if err := s.Remove(tokenA); err != nil {
		t.Fatal(err)
	}
}

func TestRemove_OnlyFirstDuplicate(t *testing.T) {
	s := newTestStore(t)
	dup := []models.Subscription{
		{TokenAddress: tokenA, Users: []string{"u1"}},
		{TokenAddress: tokenA, Users: []string{"u2"}},
	}
	if err := s.Save(dup); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(tokenA); err != nil {
		t.Fatal(err)
	}
	subs := mustLoad(t, s)
	if len(subs) != 1 || subs[0].Users[0] != "u2" {
		t.Errorf("registry = %+v, want second duplicate kept", subs)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	raw := `[{"token_address":"` + tokenB + `","users":["9","8"]},{"token_address":"` + tokenA + `","users":[]}]`
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	before := mustLoad(t, s)
	if err := s.Save(before); err != nil {
		t.Fatal(err)
	}
	after := mustLoad(t, s)

	if !reflect.DeepEqual(before, after) {
		t.Errorf("round trip changed registry:\n before %+v\n after  %+v", before, after)
	}
	data, _ := os.ReadFile(s.Path())
	if string(data) != raw {
		t.Errorf("file = %s, want %s", data, raw)
	}
}

func TestSave_NilUsersWrittenAsEmptyArray(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save([]models.Subscription{{TokenAddress: tokenA}}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(s.Path())
	want := `[{"token_address":"` + tokenA + `","users":[]}]`
	if string(data) != want {
		t.Errorf("file = %s, want %s", data, want)
	}
}

func TestConcurrentAddSubscriptions(t *testing.T) {
	s := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.AddSubscription(fmt.Sprintf("0x%040d", i), "u"); err != nil {
				t.Errorf("AddSubscription: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if subs := mustLoad(t, s); len(subs) != n {
		t.Errorf("len = %d, want %d (lost update)", len(subs), n)
	}
}

func TestStartWatching_ExternalEdit(t *testing.T) {
	s := newTestStore(t)
	if err := s.AddSubscription(tokenA, "u1"); err != nil {
		t.Fatal(err)
	}

	changed := make(chan struct{}, 4)
	if err := s.StartWatching(func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("StartWatching: %v", err)
	}

	// our own write must not trigger the callback
	if err := s.AddUser(tokenA, "u2"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
		t.Fatal("callback fired for the store's own write")
	case <-time.After(3 * reloadDebounce):
	}

	raw := `[{"token_address":"` + tokenB + `","users":["x"]}]`
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("callback not fired for external edit")
	}
}
