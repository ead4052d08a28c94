package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/noisesurvey/internal/clock"
	"github.com/smallbiznis/noisesurvey/internal/config"
	"github.com/smallbiznis/noisesurvey/internal/migration"
	"github.com/smallbiznis/noisesurvey/internal/observation/domain"
	"github.com/smallbiznis/noisesurvey/internal/observation/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var baseTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func TestCreateAddsExactlyOneRecord(t *testing.T) {
	svc, db, _ := setupObservationService(t)

	resp, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "2024-05-01 09:30:00", resp.Timestamp)
	assert.Equal(t, int64(1), countObservations(t, db))
}

func TestCreateMissingFieldAddsNothing(t *testing.T) {
	svc, db, _ := setupObservationService(t)

	blank := map[string]func(*domain.CreateRequest){
		"age":          func(r *domain.CreateRequest) { r.Age = "" },
		"location":     func(r *domain.CreateRequest) { r.Location = "  " },
		"environment":  func(r *domain.CreateRequest) { r.Environment = "" },
		"activity":     func(r *domain.CreateRequest) { r.Activity = "\t" },
		"noise_level":  func(r *domain.CreateRequest) { r.NoiseLevel = "" },
		"noise_source": func(r *domain.CreateRequest) { r.NoiseSource = "" },
		"tolerance":    func(r *domain.CreateRequest) { r.Tolerance = " " },
	}
	for field, blankOut := range blank {
		req := validRequest()
		blankOut(&req)

		resp, err := svc.Create(context.Background(), req)
		require.Error(t, err, field)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, domain.ErrValidation)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, field, verr.Field)
	}
	assert.Zero(t, countObservations(t, db))
}

func TestCreateEmptyRequestFails(t *testing.T) {
	svc, db, _ := setupObservationService(t)

	_, err := svc.Create(context.Background(), domain.CreateRequest{})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, countObservations(t, db))
}

func TestCreateTrimsAnswers(t *testing.T) {
	svc, _, _ := setupObservationService(t)

	req := validRequest()
	req.Location = "  Main Street  "
	resp, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Main Street", resp.Location)
}

func TestListIsIdempotent(t *testing.T) {
	svc, _, clk := setupObservationService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, validRequest())
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx)
	require.NoError(t, err)
	second, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestListOrdersNewestFirst(t *testing.T) {
	svc, _, clk := setupObservationService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		resp, err := svc.Create(ctx, validRequest())
		require.NoError(t, err)
		ids = append(ids, resp.ID)
		clk.Advance(time.Hour)
	}

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, "2024-05-01 11:30:00", items[0].Timestamp)
}

func TestListTiesKeepInsertionOrder(t *testing.T) {
	svc, _, _ := setupObservationService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	second, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
}

func TestCreateUsesSuppliedTimestamp(t *testing.T) {
	svc, _, _ := setupObservationService(t)
	ctx := context.Background()

	at := time.Date(2023, 12, 24, 18, 0, 0, 0, time.FixedZone("CET", 3600))
	req := validRequest()
	req.Timestamp = &at
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)
	_, err = svc.Create(ctx, validRequest())
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2023-12-24 17:00:00", items[1].Timestamp)
}

func TestDeviceInfoRoundTrip(t *testing.T) {
	svc, _, _ := setupObservationService(t)
	ctx := context.Background()

	req := validRequest()
	req.DeviceInfo = datatypes.JSON(`{ "os": "iOS", "model": "iPhone 15", "mic": {"gain": 3} }`)
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"os":"iOS","model":"iPhone 15","mic":{"gain":3}}`, string(items[0].DeviceInfo))
}

func TestCreateWithoutDeviceInfoStoresNull(t *testing.T) {
	svc, db, _ := setupObservationService(t)
	ctx := context.Background()

	req := validRequest()
	req.DeviceInfo = datatypes.JSON("null")
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	var nulls int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM noise_records WHERE device_info IS NULL`).Scan(&nulls).Error)
	assert.Equal(t, int64(1), nulls)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].DeviceInfo)
	assert.Nil(t, items[0].MeasuredDB)
}

func TestCreateMalformedDeviceInfoFails(t *testing.T) {
	svc, db, _ := setupObservationService(t)

	req := validRequest()
	req.DeviceInfo = datatypes.JSON(`{"os":`)
	_, err := svc.Create(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrSerialization)
	assert.Zero(t, countObservations(t, db))
}

func TestListRejectsInvalidStoredDeviceInfo(t *testing.T) {
	svc, db, _ := setupObservationService(t)

	require.NoError(t, db.Exec(
		`INSERT INTO noise_records (id, "timestamp", age, location, environment, activity, noise_level, noise_source, tolerance, device_info)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		1, baseTime, "18-25", "Park", "outdoor", "walking", "high", "traffic", "low", "not json",
	).Error)

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, domain.ErrSerialization)
}

func TestListRejectsEmptyStoredDeviceInfo(t *testing.T) {
	svc, db, _ := setupObservationService(t)

	require.NoError(t, db.Exec(
		`INSERT INTO noise_records (id, "timestamp", age, location, environment, activity, noise_level, noise_source, tolerance, device_info)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		1, baseTime, "18-25", "Park", "outdoor", "walking", "high", "traffic", "low", "",
	).Error)

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, domain.ErrSerialization)
}

func TestListMixesNullAndStructuredDeviceInfo(t *testing.T) {
	svc, _, clk := setupObservationService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	clk.Advance(time.Minute)

	req := validRequest()
	req.DeviceInfo = datatypes.JSON(`{"os":"Android"}`)
	_, err = svc.Create(ctx, req)
	require.NoError(t, err)

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"os":"Android"}`, string(items[0].DeviceInfo))
	assert.Nil(t, items[1].DeviceInfo)
}

func TestListReturnsEveryRow(t *testing.T) {
	svc, _, clk := setupObservationService(t)
	ctx := context.Background()

	const total = 120
	for i := 0; i < total; i++ {
		_, err := svc.Create(ctx, validRequest())
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	items, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, total)
}

func TestListEmptyStore(t *testing.T) {
	svc, _, _ := setupObservationService(t)

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestSubmissionScenario(t *testing.T) {
	svc, db, _ := setupObservationService(t)
	ctx := context.Background()

	measured := 42.5
	req := domain.CreateRequest{
		Age:         "25-34",
		Location:    "Office",
		Environment: "indoor",
		Activity:    "working",
		NoiseLevel:  "moderate",
		NoiseSource: "people",
		Tolerance:   "medium",
		MeasuredDB:  &measured,
		DeviceInfo:  datatypes.JSON(`{"os":"iOS"}`),
	}
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countObservations(t, db))

	items, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	got := items[0]
	require.NotNil(t, got.MeasuredDB)
	assert.Equal(t, 42.5, *got.MeasuredDB)
	assert.JSONEq(t, `{"os":"iOS"}`, string(got.DeviceInfo))
	assert.Nil(t, got.Latitude)
	assert.Nil(t, got.Longitude)
	assert.Equal(t, "Office", got.Location)
}

func TestCreateWrapsStoreFailures(t *testing.T) {
	db := openTestDB(t)
	repo := new(repositoryMock)
	repo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.Observation")).Return(errors.New("disk full"))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: mustNode(t),
		Repo:  repo,
		Clock: clock.NewFakeClock(baseTime),
	})

	_, err := svc.Create(context.Background(), validRequest())
	require.ErrorIs(t, err, domain.ErrStore)

	var serr *domain.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "insert", serr.Op)
	assert.EqualError(t, serr.Err, "disk full")
	repo.AssertExpectations(t)
}

func TestListWrapsStoreFailures(t *testing.T) {
	db := openTestDB(t)
	repo := new(repositoryMock)
	repo.On("List", mock.Anything).Return([]domain.Observation(nil), errors.New("no such table: noise_records"))

	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: mustNode(t), Repo: repo})

	_, err := svc.List(context.Background())
	require.ErrorIs(t, err, domain.ErrStore)
	assert.Equal(t, "store_error", domain.Kind(err))
}

func TestCreateRollsBackWhenInsertPanics(t *testing.T) {
	svc, db, _ := setupObservationService(t)
	ctx := context.Background()

	panicking := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: mustNode(t),
		Repo:  panicRepository{inner: repository.Provide()},
		Clock: clock.NewFakeClock(baseTime),
	})

	assert.Panics(t, func() { _, _ = panicking.Create(ctx, validRequest()) })
	assert.Zero(t, countObservations(t, db))

	_, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(1), countObservations(t, db))
}

type repositoryMock struct {
	mock.Mock
}

func (m *repositoryMock) Insert(ctx context.Context, _ *gorm.DB, obs *domain.Observation) error {
	args := m.Called(ctx, obs)
	return args.Error(0)
}

func (m *repositoryMock) List(ctx context.Context, _ *gorm.DB) ([]domain.Observation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Observation), args.Error(1)
}

func (m *repositoryMock) Count(ctx context.Context, _ *gorm.DB) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// panicRepository writes the row and then panics inside the transaction.
type panicRepository struct {
	inner domain.Repository
}

func (r panicRepository) Insert(ctx context.Context, db *gorm.DB, obs *domain.Observation) error {
	if err := r.inner.Insert(ctx, db, obs); err != nil {
		return err
	}
	panic("connection reset mid-request")
}

func (r panicRepository) List(ctx context.Context, db *gorm.DB) ([]domain.Observation, error) {
	return r.inner.List(ctx, db)
}

func (r panicRepository) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	return r.inner.Count(ctx, db)
}

func setupObservationService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := openTestDB(t)
	require.NoError(t, migration.Run(db, config.DBTypeSQLite))

	clk := clock.NewFakeClock(baseTime)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: mustNode(t),
		Repo:  repository.Provide(),
		Clock: clk,
	})
	return svc, db, clk
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func countObservations(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	count, err := repository.Provide().Count(context.Background(), db)
	require.NoError(t, err)
	return count
}

func validRequest() domain.CreateRequest {
	return domain.CreateRequest{
		Age:         "18-24",
		Location:    "Main Street",
		Environment: "outdoor",
		Activity:    "commuting",
		NoiseLevel:  "high",
		NoiseSource: "traffic",
		Tolerance:   "low",
	}
}
