package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/noisesurvey/internal/clock"
	"github.com/smallbiznis/noisesurvey/internal/observability/logger"
	"github.com/smallbiznis/noisesurvey/internal/observability/metrics"
	"github.com/smallbiznis/noisesurvey/internal/observation/domain"
	dbpkg "github.com/smallbiznis/noisesurvey/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("observation.service"),
		repo:    p.Repo,
		genID:   p.GenID,
		clock:   clk,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	obs, err := s.newObservation(req)
	if err != nil {
		s.metrics.RecordSubmission(ctx, metrics.OutcomeRejected, domain.Kind(err))
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, obs)
	})
	if err != nil {
		kind := dbpkg.Classify(err)
		s.metrics.RecordSubmission(ctx, metrics.OutcomeFailed, kind)
		logger.WithContext(ctx, s.log).Error("observation.create_failed",
			zap.String("db_error", kind),
			zap.Error(err),
		)
		return nil, &domain.StoreError{Op: "insert", Err: err}
	}

	s.metrics.RecordSubmission(ctx, metrics.OutcomeSaved, "")
	logger.WithContext(ctx, s.log).Info("observation.created",
		zap.String("observation_id", obs.ID.String()),
		zap.Bool("measured", obs.MeasuredDB != nil),
		zap.Bool("located", obs.Latitude != nil && obs.Longitude != nil),
	)

	resp := toResponse(*obs)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		s.metrics.RecordListing(ctx, metrics.OutcomeFailed, 0)
		return nil, &domain.StoreError{Op: "list", Err: err}
	}

	out := make([]domain.Response, 0, len(items))
	for _, item := range items {
		info, err := storedDeviceInfo(item.DeviceInfo)
		if err != nil {
			s.metrics.RecordListing(ctx, metrics.OutcomeFailed, 0)
			logger.WithContext(ctx, s.log).Error("observation.decode_failed",
				zap.String("observation_id", item.ID.String()),
				zap.Error(err),
			)
			return nil, err
		}
		item.DeviceInfo = info
		out = append(out, toResponse(item))
	}

	s.metrics.RecordListing(ctx, metrics.OutcomeServed, len(out))
	return out, nil
}

func (s *Service) newObservation(req domain.CreateRequest) (*domain.Observation, error) {
	required := []struct {
		field string
		value *string
	}{
		{"age", &req.Age},
		{"location", &req.Location},
		{"environment", &req.Environment},
		{"activity", &req.Activity},
		{"noise_level", &req.NoiseLevel},
		{"noise_source", &req.NoiseSource},
		{"tolerance", &req.Tolerance},
	}
	for _, r := range required {
		*r.value = strings.TrimSpace(*r.value)
		if *r.value == "" {
			return nil, &domain.ValidationError{Field: r.field}
		}
	}

	info, err := submittedDeviceInfo(req.DeviceInfo)
	if err != nil {
		return nil, err
	}

	recordedAt := s.clock.Now()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		recordedAt = *req.Timestamp
	}

	return &domain.Observation{
		ID:          s.genID.Generate(),
		RecordedAt:  recordedAt.UTC().Truncate(time.Microsecond),
		Age:         req.Age,
		Location:    req.Location,
		Environment: req.Environment,
		Activity:    req.Activity,
		NoiseLevel:  req.NoiseLevel,
		NoiseSource: req.NoiseSource,
		Tolerance:   req.Tolerance,
		MeasuredDB:  req.MeasuredDB,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		DeviceInfo:  info,
	}, nil
}

// submittedDeviceInfo compacts the submitted value. Absent and null both
// store SQL NULL.
func submittedDeviceInfo(raw datatypes.JSON) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, &domain.SerializationError{Field: "device_info", Err: err}
	}
	return datatypes.JSON(buf.Bytes()), nil
}

// storedDeviceInfo validates the text read back from a row. The repository
// reads NULL as the JSON literal null; empty text is invalid.
func storedDeviceInfo(stored datatypes.JSON) (datatypes.JSON, error) {
	if len(stored) == 0 {
		return nil, &domain.SerializationError{Field: "device_info"}
	}
	if !json.Valid(stored) {
		return nil, &domain.SerializationError{Field: "device_info"}
	}
	if bytes.Equal(stored, []byte("null")) {
		return nil, nil
	}
	return stored, nil
}

func toResponse(obs domain.Observation) domain.Response {
	return domain.Response{
		ID:          obs.ID.String(),
		Timestamp:   obs.RecordedAt.UTC().Format(domain.TimestampLayout),
		Age:         obs.Age,
		Location:    obs.Location,
		Environment: obs.Environment,
		Activity:    obs.Activity,
		NoiseLevel:  obs.NoiseLevel,
		NoiseSource: obs.NoiseSource,
		Tolerance:   obs.Tolerance,
		MeasuredDB:  obs.MeasuredDB,
		Latitude:    obs.Latitude,
		Longitude:   obs.Longitude,
		DeviceInfo:  obs.DeviceInfo,
		RecordedAt:  obs.RecordedAt.UTC(),
	}
}
