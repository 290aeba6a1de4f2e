package membership

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"afilia/internal/models"
	"afilia/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a controllable clock shared by the service and the fake
// store so timestamps advance deterministically.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeStore is an in-memory MembershipRepository with the same version
// semantics as the postgres implementation.
type fakeStore struct {
	mu          sync.Mutex
	nextID      uint
	memberships map[uint]*models.Membership
	now         func() time.Time

	// failUpdates fails that many versioned writes with a version conflict.
	failUpdates int
	// updateErr fails every versioned write with a non-conflict error.
	updateErr error
	// onGetByID runs after a successful read, outside the store lock, so
	// tests can interleave a concurrent write between a caller's read and
	// its subsequent write.
	onGetByID func()
}

func newFakeStore(clock *testClock) *fakeStore {
	return &fakeStore{
		memberships: make(map[uint]*models.Membership),
		now:         clock.Now,
	}
}

func cloneStored(m *models.Membership) *models.Membership {
	out := *m
	out.Cards = make([]models.Card, len(m.Cards))
	copy(out.Cards, m.Cards)
	return &out
}

func (f *fakeStore) List(_ context.Context, userID uint) ([]*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Membership
	for _, m := range f.memberships {
		if m.UserID == userID {
			result = append(result, cloneStored(m))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeStore) GetByID(_ context.Context, userID, membershipID uint) (*models.Membership, error) {
	f.mu.Lock()
	m, ok := f.memberships[membershipID]
	var clone *models.Membership
	if ok && m.UserID == userID {
		clone = cloneStored(m)
	}
	hook := f.onGetByID
	f.mu.Unlock()

	if clone == nil {
		return nil, repositories.ErrMembershipNotFound
	}
	if hook != nil {
		hook()
	}
	return clone, nil
}

func (f *fakeStore) FindByName(_ context.Context, userID uint, name string, category models.Category) (*models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *models.Membership
	for _, m := range f.memberships {
		if m.UserID != userID || m.Name != name || m.Category != category {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) ||
			(m.CreatedAt.Equal(found.CreatedAt) && m.ID < found.ID) {
			found = m
		}
	}
	if found == nil {
		return nil, repositories.ErrMembershipNotFound
	}
	return cloneStored(found), nil
}

func (f *fakeStore) Create(_ context.Context, m *models.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m.ID = f.nextID
	m.Version = 1
	m.CreatedAt = f.now()
	m.UpdatedAt = f.now()
	for i := range m.Cards {
		m.Cards[i].MembershipID = m.ID
		m.Cards[i].Position = i
	}
	f.memberships[m.ID] = cloneStored(m)
	return nil
}

// cardRowConflict mirrors the cards table primary key: a card id may
// live under only one membership at a time.
func (f *fakeStore) cardRowConflict(m *models.Membership) error {
	for _, other := range f.memberships {
		if other.ID == m.ID {
			continue
		}
		for _, c := range other.Cards {
			for _, w := range m.Cards {
				if c.ID == w.ID {
					return fmt.Errorf("%w: duplicate card id %q", repositories.ErrStoreUnavailable, w.ID)
				}
			}
		}
	}
	return nil
}

// storeVersioned is the shared conditional-write path of Update and
// Consolidate. Callers hold the lock.
func (f *fakeStore) storeVersioned(m *models.Membership) error {
	if f.failUpdates > 0 {
		f.failUpdates--
		return repositories.ErrVersionConflict
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.memberships[m.ID]
	if !ok || stored.UserID != m.UserID {
		return repositories.ErrMembershipNotFound
	}
	if stored.Version != m.Version {
		return repositories.ErrVersionConflict
	}
	if err := f.cardRowConflict(m); err != nil {
		return err
	}
	next := cloneStored(m)
	next.CreatedAt = stored.CreatedAt
	next.Version = stored.Version + 1
	next.UpdatedAt = f.now()
	for i := range next.Cards {
		next.Cards[i].MembershipID = next.ID
		next.Cards[i].Position = i
	}
	f.memberships[m.ID] = next
	m.Version++
	m.UpdatedAt = next.UpdatedAt
	return nil
}

func (f *fakeStore) Update(_ context.Context, m *models.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeVersioned(m)
}

func (f *fakeStore) Consolidate(_ context.Context, keep *models.Membership, duplicateIDs []uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := make(map[uint]*models.Membership, len(duplicateIDs))
	for _, id := range duplicateIDs {
		if dup, ok := f.memberships[id]; ok && dup.UserID == keep.UserID {
			removed[id] = dup
			delete(f.memberships, id)
		}
	}
	if err := f.storeVersioned(keep); err != nil {
		// Transaction semantics: the duplicates come back on failure.
		for id, dup := range removed {
			f.memberships[id] = dup
		}
		return err
	}
	return nil
}

func (f *fakeStore) Delete(_ context.Context, userID, membershipID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memberships[membershipID]
	if !ok || m.UserID != userID {
		return repositories.ErrMembershipNotFound
	}
	delete(f.memberships, membershipID)
	return nil
}

func (f *fakeStore) DeleteVersioned(_ context.Context, m *models.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.memberships[m.ID]
	if !ok || stored.UserID != m.UserID {
		return repositories.ErrMembershipNotFound
	}
	if stored.Version != m.Version {
		return repositories.ErrVersionConflict
	}
	delete(f.memberships, m.ID)
	return nil
}

func newTestService(clock *testClock, store *fakeStore) Service {
	return NewService(store, nil, Config{Clock: clock.Now}, nil)
}

const testUser uint = 1

func visaGoldCredit() CardInput {
	return CardInput{Type: models.CardTypeCredit, Brand: models.BrandVisa, Level: models.LevelGold}
}

func mastercardClassicDebit() CardInput {
	return CardInput{Type: models.CardTypeDebit, Brand: models.BrandMastercard, Level: models.LevelClassic}
}

func TestCreateBankMembership_CreatesNew(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))

	m, err := svc.CreateBankMembership(context.Background(), testUser, "Galicia", []CardInput{visaGoldCredit()})
	require.NoError(t, err)

	assert.Equal(t, "Banco Galicia", m.Name)
	assert.Equal(t, models.CategoryBank, m.Category)
	assert.Equal(t, models.StatusActive, m.Status)
	assert.NotZero(t, m.ID)
	require.Len(t, m.Cards, 1)
	assert.NotEmpty(t, m.Cards[0].ID)
}

func TestCreateBankMembership_ConsolidatesSameName(t *testing.T) {
	clock := newTestClock()
	store := newFakeStore(clock)
	svc := newTestService(clock, store)
	ctx := context.Background()

	first, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{visaGoldCredit()})
	require.NoError(t, err)
	createdAt := first.UpdatedAt

	clock.Advance(time.Hour)
	second, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{mastercardClassicDebit()})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Cards, 2)
	assert.True(t, second.UpdatedAt.After(createdAt))

	all, err := svc.ListMemberships(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreateBankMembership_NameMatchIsCaseSensitive(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))
	ctx := context.Background()

	_, err := svc.CreateBankMembership(ctx, testUser, "Banco Galicia", []CardInput{visaGoldCredit()})
	require.NoError(t, err)
	_, err = svc.CreateBankMembership(ctx, testUser, "Banco galicia", []CardInput{mastercardClassicDebit()})
	require.NoError(t, err)

	all, err := svc.ListMemberships(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateBankMembership_RejectsDuplicateTriple(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))
	ctx := context.Background()

	_, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{visaGoldCredit()})
	require.NoError(t, err)

	_, err = svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{visaGoldCredit()})
	assert.ErrorIs(t, err, ErrValidation)

	m, err := svc.ListMemberships(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Len(t, m[0].Cards, 1)
}

func TestCreateBankMembership_RejectsEmptyCardList(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))

	_, err := svc.CreateBankMembership(context.Background(), testUser, "Banco X", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateBankMembership_RejectsInvalidExpiry(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))

	card := visaGoldCredit()
	card.ExpiryDate = "13/25"
	_, err := svc.CreateBankMembership(context.Background(), testUser, "Banco X", []CardInput{card})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateBankMembership_RetriesOnVersionConflict(t *testing.T) {
	clock := newTestClock()
	store := newFakeStore(clock)
	svc := newTestService(clock, store)
	ctx := context.Background()

	_, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{visaGoldCredit()})
	require.NoError(t, err)

	store.failUpdates = 1
	m, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{mastercardClassicDebit()})
	require.NoError(t, err)
	assert.Len(t, m.Cards, 2)
}

func TestCreateMembership_NonBankNeverConsolidates(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))
	ctx := context.Background()

	input := CreateMembershipInput{Name: "Megatlon", Category: models.CategoryGym}
	_, err := svc.CreateMembership(ctx, testUser, input)
	require.NoError(t, err)
	_, err = svc.CreateMembership(ctx, testUser, input)
	require.NoError(t, err)

	all, err := svc.ListMemberships(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCreateMembership_RejectsBankCategory(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))

	_, err := svc.CreateMembership(context.Background(), testUser, CreateMembershipInput{
		Name:     "Banco X",
		Category: models.CategoryBank,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteCard_LeavesRemainingCards(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))
	ctx := context.Background()

	m, err := svc.CreateBankMembership(ctx, testUser, "Banco X",
		[]CardInput{visaGoldCredit(), mastercardClassicDebit()})
	require.NoError(t, err)

	result, err := svc.DeleteCard(ctx, testUser, m.ID, m.Cards[0].ID)
	require.NoError(t, err)
	assert.False(t, result.MembershipDeleted)
	assert.Equal(t, 1, result.Remaining)

	got, err := svc.GetMembership(ctx, testUser, m.ID)
	require.NoError(t, err)
	require.Len(t, got.Cards, 1)
	assert.Equal(t, m.Cards[1].ID, got.Cards[0].ID)
}

func TestDeleteCard_CascadesOnLastCard(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))
	ctx := context.Background()

	m, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{visaGoldCredit()})
	require.NoError(t, err)

	result, err := svc.DeleteCard(ctx, testUser, m.ID, m.Cards[0].ID)
	require.NoError(t, err)
	assert.True(t, result.MembershipDeleted)

	all, err := svc.ListMemberships(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// A card merged in between the cascade's read and its delete must
// survive: the versioned delete loses the race and the retry takes the
// non-cascade branch.
func TestDeleteCard_ConcurrentAdditionSurvivesCascade(t *testing.T) {
	clock := newTestClock()
	store := newFakeStore(clock)
	svc := newTestService(clock, store)
	ctx := context.Background()

	m, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{visaGoldCredit()})
	require.NoError(t, err)

	raced := false
	store.onGetByID = func() {
		if raced {
			return
		}
		raced = true
		_, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{mastercardClassicDebit()})
		require.NoError(t, err)
	}

	result, err := svc.DeleteCard(ctx, testUser, m.ID, m.Cards[0].ID)
	require.NoError(t, err)
	assert.False(t, result.MembershipDeleted)
	assert.Equal(t, 1, result.Remaining)

	got, err := svc.GetMembership(ctx, testUser, m.ID)
	require.NoError(t, err)
	require.Len(t, got.Cards, 1)
	assert.Equal(t, models.BrandMastercard, got.Cards[0].Brand)
}

func TestDeleteCard_AlreadyDeletedMembershipSettles(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))

	result, err := svc.DeleteCard(context.Background(), testUser, 42, "card-a")
	require.NoError(t, err)
	assert.True(t, result.MembershipDeleted)
	assert.Contains(t, result.Message, "already removed")
}

func TestDeleteCard_UnknownCard(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))
	ctx := context.Background()

	m, err := svc.CreateBankMembership(ctx, testUser, "Banco X", []CardInput{visaGoldCredit()})
	require.NoError(t, err)

	_, err = svc.DeleteCard(ctx, testUser, m.ID, "no-such-card")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestUpdateCard(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))
	ctx := context.Background()

	m, err := svc.CreateBankMembership(ctx, testUser, "Banco X",
		[]CardInput{visaGoldCredit(), mastercardClassicDebit()})
	require.NoError(t, err)
	cardID := m.Cards[0].ID

	updated, err := svc.UpdateCard(ctx, testUser, m.ID, cardID, CardInput{
		Type:       models.CardTypeCredit,
		Brand:      models.BrandAmex,
		Level:      models.LevelPlatinum,
		Name:       "corporate",
		ExpiryDate: "12/30",
		Status:     models.StatusInactive,
	})
	require.NoError(t, err)
	require.Len(t, updated.Cards, 2)
	assert.Equal(t, cardID, updated.Cards[0].ID)
	assert.Equal(t, models.BrandAmex, updated.Cards[0].Brand)
	assert.Equal(t, "12/30", updated.Cards[0].ExpiryDate)

	// Editing into another card's triple is rejected.
	_, err = svc.UpdateCard(ctx, testUser, m.ID, cardID, mastercardClassicDebit())
	assert.ErrorIs(t, err, ErrValidation)

	// Expired dates are rejected before any write.
	bad := visaGoldCredit()
	bad.ExpiryDate = "01/20"
	_, err = svc.UpdateCard(ctx, testUser, m.ID, cardID, bad)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEndToEndScenario(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(clock, newFakeStore(clock))
	ctx := context.Background()

	created, err := svc.CreateBankMembership(ctx, testUser, "Banco Test", []CardInput{visaGoldCredit()})
	require.NoError(t, err)
	firstUpdate := created.UpdatedAt

	clock.Advance(time.Minute)
	merged, err := svc.CreateBankMembership(ctx, testUser, "Banco Test", []CardInput{mastercardClassicDebit()})
	require.NoError(t, err)

	require.Equal(t, created.ID, merged.ID)
	require.Len(t, merged.Cards, 2)
	assert.True(t, merged.UpdatedAt.After(firstUpdate))

	all, err := svc.ListMemberships(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, all, 1)

	first, err := svc.DeleteCard(ctx, testUser, merged.ID, merged.Cards[0].ID)
	require.NoError(t, err)
	assert.False(t, first.MembershipDeleted)
	assert.Equal(t, 1, first.Remaining)

	second, err := svc.DeleteCard(ctx, testUser, merged.ID, merged.Cards[1].ID)
	require.NoError(t, err)
	assert.True(t, second.MembershipDeleted)

	all, err = svc.ListMemberships(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// Random add/delete sequences must never leave a bank membership with
// zero cards; the membership disappears instead.
func TestRandomSequence_BankMembershipNeverLeftEmpty(t *testing.T) {
	clock := newTestClock()
	store := newFakeStore(clock)
	svc := newTestService(clock, store)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	types := []models.CardType{models.CardTypeCredit, models.CardTypeDebit}
	brands := []models.CardBrand{models.BrandVisa, models.BrandMastercard, models.BrandAmex, models.BrandCabal, models.BrandNaranja}
	levels := []models.CardLevel{models.LevelClassic, models.LevelGold, models.LevelPlatinum, models.LevelBlack}
	names := []string{"Banco A", "Banco B", "Banco C"}

	for i := 0; i < 300; i++ {
		clock.Advance(time.Second)
		name := names[rng.Intn(len(names))]

		if rng.Intn(2) == 0 {
			card := CardInput{
				Type:  types[rng.Intn(len(types))],
				Brand: brands[rng.Intn(len(brands))],
				Level: levels[rng.Intn(len(levels))],
			}
			_, err := svc.CreateBankMembership(ctx, testUser, name, []CardInput{card})
			if err != nil {
				// Duplicate triples are the only expected failure.
				require.ErrorIs(t, err, ErrValidation)
			}
		} else {
			all, err := svc.ListMemberships(ctx, testUser)
			require.NoError(t, err)
			if len(all) == 0 {
				continue
			}
			m := all[rng.Intn(len(all))]
			if len(m.Cards) == 0 {
				continue
			}
			card := m.Cards[rng.Intn(len(m.Cards))]
			_, err = svc.DeleteCard(ctx, testUser, m.ID, card.ID)
			require.NoError(t, err)
		}

		all, err := svc.ListMemberships(ctx, testUser)
		require.NoError(t, err)
		for _, m := range all {
			if m.Category == models.CategoryBank {
				require.NotEmpty(t, m.Cards, "bank membership %q left without cards", m.Name)
			}
		}
	}
}
