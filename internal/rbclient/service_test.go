package rbclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steelhouse/smartpixel-config-service/internal/models"
)

var errStore = errors.New("store is down")

type updateCall struct {
	variableID int
	query      string
}

// fakeStore keeps pixel rows in memory and records every call so tests can
// assert which statements were (not) issued.
type fakeStore struct {
	pixels []models.Pixel
	nextID int

	failKeywordScan  bool
	failByAdvertiser bool
	insertErr        error
	insertPartial    bool
	updateErr        error
	deleteErr        error

	keywordCalls []string
	insertCalls  int
	updateCalls  []updateCall
	deleteCalls  [][]int
}

func (f *fakeStore) PixelsByAdvertiserID(ctx context.Context, advertiserID int) ([]models.Pixel, error) {
	if f.failByAdvertiser {
		return nil, errStore
	}
	out := []models.Pixel{}
	for _, p := range f.pixels {
		if p.AdvertiserID == advertiserID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) PixelsByQueryKeyword(ctx context.Context, keyword string) ([]models.Pixel, error) {
	f.keywordCalls = append(f.keywordCalls, keyword)
	if f.failKeywordScan {
		return nil, errStore
	}
	out := []models.Pixel{}
	for _, p := range f.pixels {
		if strings.Contains(p.Query, keyword) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertRbClientPixels(ctx context.Context, pixels []models.Pixel) ([]int, error) {
	f.insertCalls++
	if f.insertErr != nil {
		if f.insertPartial && len(pixels) > 0 {
			f.nextID++
			p := pixels[0]
			p.VariableID = f.nextID
			f.pixels = append(f.pixels, p)
		}
		return nil, f.insertErr
	}
	ids := make([]int, 0, len(pixels))
	for _, p := range pixels {
		f.nextID++
		p.VariableID = f.nextID
		f.pixels = append(f.pixels, p)
		ids = append(ids, f.nextID)
	}
	return ids, nil
}

func (f *fakeStore) UpdatePixelQuery(ctx context.Context, variableID int, query string) error {
	f.updateCalls = append(f.updateCalls, updateCall{variableID: variableID, query: query})
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, p := range f.pixels {
		if p.VariableID == variableID {
			f.pixels[i].Query = query
		}
	}
	return nil
}

func (f *fakeStore) DeletePixelsByIDs(ctx context.Context, ids []int) error {
	f.deleteCalls = append(f.deleteCalls, ids)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.pixels[:0]
	for _, p := range f.pixels {
		remove := false
		for _, id := range ids {
			if p.VariableID == id {
				remove = true
			}
		}
		if !remove {
			kept = append(kept, p)
		}
	}
	f.pixels = kept
	return nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func advIDPixelRow(variableID, advertiserID int, rbAdvID string) models.Pixel {
	return models.Pixel{VariableID: variableID, AdvertiserID: advertiserID, Query: AdvIDQuery(rbAdvID)}
}

func uidPixelRow(variableID, advertiserID int) models.Pixel {
	return models.Pixel{VariableID: variableID, AdvertiserID: advertiserID, Query: UIDQuery()}
}

func TestClientsPairsByAdvertiserID(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{
		advIDPixelRow(1, 1, "rb1"),
		advIDPixelRow(2, 2, "rb2"),
		advIDPixelRow(3, 3, "rb3"),
		uidPixelRow(4, 2),
		uidPixelRow(5, 3),
		uidPixelRow(6, 4),
	}}
	svc := newTestService(store)

	clients, err := svc.Clients(context.Background())
	require.NoError(t, err)
	// advertiser 1 has no UID pixel, advertiser 4 has no AdvID pixel
	assert.Equal(t, map[int]string{2: "rb2", 3: "rb3"}, clients)
}

func TestClientsScanFailure(t *testing.T) {
	store := &fakeStore{failKeywordScan: true}
	svc := newTestService(store)

	clients, err := svc.Clients(context.Background())
	require.Error(t, err)
	assert.Nil(t, clients)
}

func TestClientsSkipsUnparseableAdvID(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{
		{VariableID: 1, AdvertiserID: 7, Query: "let getRockerBoxAdvID = () => {}; getRockerBoxAdvID();"},
		uidPixelRow(2, 7),
	}}
	svc := newTestService(store)

	clients, err := svc.Clients(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestAdvertiserIDsDoesNotValidate(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{
		uidPixelRow(1, 10),
		uidPixelRow(2, 10),
		uidPixelRow(3, 11),
	}}
	svc := newTestService(store)

	ids, err := svc.AdvertiserIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{10, 10, 11}, ids)
}

func TestSpxMapAbsentAdvertiser(t *testing.T) {
	svc := newTestService(&fakeStore{})

	m, err := svc.SpxMap(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestSpxMapValidPair(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{
		advIDPixelRow(1, 5, "rb5"),
		uidPixelRow(2, 5),
		// unrelated pixel of the same advertiser is ignored
		{VariableID: 3, AdvertiserID: 5, Query: "some other pixel"},
	}}
	svc := newTestService(store)

	m, err := svc.SpxMap(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, 1, m[RoleAdvID].VariableID)
	assert.Equal(t, 2, m[RoleUID].VariableID)
}

func TestSpxMapHalfPairIsInconsistent(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{advIDPixelRow(1, 5, "rb5")}}
	svc := newTestService(store)

	m, err := svc.SpxMap(context.Background(), 5)
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Nil(t, m)
}

func TestSpxMapStoreFailure(t *testing.T) {
	svc := newTestService(&fakeStore{failByAdvertiser: true})

	_, err := svc.SpxMap(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInconsistent)
}

func TestIsRbAdvIDUnique(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{
		advIDPixelRow(1, 100, "x"),
		uidPixelRow(2, 100),
	}}
	svc := newTestService(store)

	// same advertiser re-submitting its own id is not a conflict
	assert.True(t, svc.IsRbAdvIDUnique(context.Background(), 100, "x"))
	// another advertiser claiming the same id is
	assert.False(t, svc.IsRbAdvIDUnique(context.Background(), 200, "x"))
	// unused id is free for anyone
	assert.True(t, svc.IsRbAdvIDUnique(context.Background(), 200, "y"))
}

func TestIsRbAdvIDUniqueScanFailure(t *testing.T) {
	svc := newTestService(&fakeStore{failKeywordScan: true})
	assert.False(t, svc.IsRbAdvIDUnique(context.Background(), 1, "x"))
}

func TestCreateInsertsBothPixels(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	err := svc.Create(context.Background(), models.RbClientConfig{AdvertiserID: 10, RbAdvID: "rb10"})
	require.NoError(t, err)
	require.Len(t, store.pixels, 2)
	for _, p := range store.pixels {
		assert.Equal(t, 10, p.AdvertiserID)
	}
	assert.Contains(t, store.pixels[0].Query, "rb_adv_id=rb10")

	m, err := svc.SpxMap(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, m, 2)
}

func TestCreateRejectsInvalidRbAdvID(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	err := svc.Create(context.Background(), models.RbClientConfig{AdvertiserID: 10, RbAdvID: "bad id"})
	require.Error(t, err)
	assert.Zero(t, store.insertCalls)
}

func TestCreateRejectsDuplicateRbAdvID(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{
		advIDPixelRow(1, 1, "taken"),
		uidPixelRow(2, 1),
	}}
	svc := newTestService(store)

	err := svc.Create(context.Background(), models.RbClientConfig{AdvertiserID: 2, RbAdvID: "taken"})
	require.ErrorIs(t, err, ErrNotUnique)
	assert.Zero(t, store.insertCalls)
}

func TestCreateCleansUpPartialInsert(t *testing.T) {
	store := &fakeStore{insertErr: errStore, insertPartial: true}
	svc := newTestService(store)

	err := svc.Create(context.Background(), models.RbClientConfig{AdvertiserID: 10, RbAdvID: "rb10"})
	require.Error(t, err)
	require.Len(t, store.deleteCalls, 1)
	assert.Empty(t, store.pixels)
}

func TestCreateSkipsCleanupWhenNothingInserted(t *testing.T) {
	store := &fakeStore{insertErr: errStore}
	svc := newTestService(store)

	err := svc.Create(context.Background(), models.RbClientConfig{AdvertiserID: 10, RbAdvID: "rb10"})
	require.Error(t, err)
	assert.Empty(t, store.deleteCalls)
}

func TestUpdateIdempotentWhenIDUnchanged(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	spxMap := map[Role]models.Pixel{
		RoleAdvID: advIDPixelRow(1, 9, "same"),
		RoleUID:   uidPixelRow(2, 9),
	}

	err := svc.Update(context.Background(), models.RbClientConfig{AdvertiserID: 9, RbAdvID: "same"}, spxMap)
	require.NoError(t, err)
	// the no-op short-circuit runs neither the uniqueness scan nor a write
	assert.Empty(t, store.keywordCalls)
	assert.Empty(t, store.updateCalls)
}

func TestUpdateRewritesAdvIDPixelOnly(t *testing.T) {
	advIDPixel := advIDPixelRow(1, 9, "old")
	uidPixel := uidPixelRow(2, 9)
	store := &fakeStore{pixels: []models.Pixel{advIDPixel, uidPixel}}
	svc := newTestService(store)
	spxMap := map[Role]models.Pixel{RoleAdvID: advIDPixel, RoleUID: uidPixel}

	err := svc.Update(context.Background(), models.RbClientConfig{AdvertiserID: 9, RbAdvID: "new"}, spxMap)
	require.NoError(t, err)
	require.Len(t, store.updateCalls, 1)
	assert.Equal(t, 1, store.updateCalls[0].variableID)
	assert.Equal(t, AdvIDQuery("new"), store.updateCalls[0].query)
	assert.Equal(t, UIDQuery(), store.pixels[1].Query)
}

func TestUpdateRejectsDuplicateRbAdvID(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{
		advIDPixelRow(1, 9, "old"),
		uidPixelRow(2, 9),
		advIDPixelRow(3, 8, "claimed"),
		uidPixelRow(4, 8),
	}}
	svc := newTestService(store)
	spxMap := map[Role]models.Pixel{
		RoleAdvID: advIDPixelRow(1, 9, "old"),
		RoleUID:   uidPixelRow(2, 9),
	}

	err := svc.Update(context.Background(), models.RbClientConfig{AdvertiserID: 9, RbAdvID: "claimed"}, spxMap)
	require.ErrorIs(t, err, ErrNotUnique)
	assert.Empty(t, store.updateCalls)
}

func TestUpdateFailsWithoutAdvIDPixel(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	spxMap := map[Role]models.Pixel{RoleUID: uidPixelRow(2, 9)}

	err := svc.Update(context.Background(), models.RbClientConfig{AdvertiserID: 9, RbAdvID: "new"}, spxMap)
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Empty(t, store.updateCalls)
}

func TestUpdateFailsWhenCurrentIDUnparseable(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	spxMap := map[Role]models.Pixel{
		RoleAdvID: {VariableID: 1, AdvertiserID: 9, Query: "let getRockerBoxAdvID = () => {}; getRockerBoxAdvID();"},
		RoleUID:   uidPixelRow(2, 9),
	}

	err := svc.Update(context.Background(), models.RbClientConfig{AdvertiserID: 9, RbAdvID: "new"}, spxMap)
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Empty(t, store.updateCalls)
}

func TestDeleteRemovesBothPixels(t *testing.T) {
	store := &fakeStore{pixels: []models.Pixel{
		advIDPixelRow(1, 5, "rb5"),
		uidPixelRow(2, 5),
	}}
	svc := newTestService(store)
	spxMap := map[Role]models.Pixel{
		RoleAdvID: advIDPixelRow(1, 5, "rb5"),
		RoleUID:   uidPixelRow(2, 5),
	}

	err := svc.Delete(context.Background(), 5, spxMap)
	require.NoError(t, err)
	require.Len(t, store.deleteCalls, 1)
	assert.ElementsMatch(t, []int{1, 2}, store.deleteCalls[0])
	assert.Empty(t, store.pixels)
}

func TestDeleteAbortsOnAdvertiserMismatch(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	spxMap := map[Role]models.Pixel{
		RoleAdvID: advIDPixelRow(1, 5, "rb5"),
		RoleUID:   uidPixelRow(2, 6),
	}

	err := svc.Delete(context.Background(), 5, spxMap)
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Empty(t, store.deleteCalls)
}

func TestDeleteAbortsOnNonRbPixel(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)
	spxMap := map[Role]models.Pixel{
		RoleAdvID: advIDPixelRow(1, 5, "rb5"),
		RoleUID:   {VariableID: 2, AdvertiserID: 5, Query: "not a rockerbox pixel"},
	}

	err := svc.Delete(context.Background(), 5, spxMap)
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Empty(t, store.deleteCalls)
}
