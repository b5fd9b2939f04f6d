package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"vlm-gateway/internal/backend"
	"vlm-gateway/internal/database"
	"vlm-gateway/internal/dataset"
	"vlm-gateway/internal/metrics"
	"vlm-gateway/internal/models"
	"vlm-gateway/internal/storage"
)

const defaultExtension = "jpg"

// RecordLog is an append-only record sink such as a dataset.Log.
type RecordLog interface {
	Append(v any) error
	Count() (int, error)
	Path() string
}

// Index is an optional queryable mirror of the logs.
type Index interface {
	Insert(ctx context.Context, e database.Entry) error
	Counts(ctx context.Context) (map[string]int, error)
}

// FeedbackService turns feedback submissions into a stored image plus one appended dataset record.
type FeedbackService struct {
	images  storage.ImageStore
	sftLog  RecordLog
	dpoLog  RecordLog
	index   Index
	metrics *metrics.Metrics
	now     func() time.Time
}

type FeedbackOption func(*FeedbackService)

func WithIndex(index Index) FeedbackOption {
	return func(s *FeedbackService) { s.index = index }
}

func WithMetrics(m *metrics.Metrics) FeedbackOption {
	return func(s *FeedbackService) { s.metrics = m }
}

func WithClock(now func() time.Time) FeedbackOption {
	return func(s *FeedbackService) { s.now = now }
}

func NewFeedbackService(images storage.ImageStore, sftLog, dpoLog RecordLog, opts ...FeedbackOption) *FeedbackService {
	s := &FeedbackService{
		images: images,
		sftLog: sftLog,
		dpoLog: dpoLog,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FeedbackService) RecordSFT(ctx context.Context, sub models.SFTSubmission) (string, error) {
	// A dropped client must not abort the sequence between image write and append.
	ctx = context.WithoutCancel(ctx)

	imageRef, err := s.saveImage(ctx, sub.Image)
	if err != nil {
		s.metrics.RecordFeedback(database.DatasetSFT, false)
		return "", err
	}

	id, ts := uuid.New(), s.now().UTC()
	record := models.SFTRecord{
		ID:        id.String(),
		Timestamp: ts.Format(time.RFC3339Nano),
		Image:     imageRef,
		Query:     sub.Query,
		Response:  sub.Response,
		Model:     sub.ModelName,
		Label:     models.Label(sub.IsPass),
	}

	if err := s.append(s.sftLog, record, record.ID, imageRef); err != nil {
		s.metrics.RecordFeedback(database.DatasetSFT, false)
		return "", err
	}
	s.metrics.RecordFeedback(database.DatasetSFT, true)

	s.mirror(ctx, database.Entry{
		ID:         id,
		Dataset:    database.DatasetSFT,
		ImageRef:   imageRef,
		Model:      sub.ModelName,
		Label:      record.Label,
		LogFile:    s.sftLog.Path(),
		RecordedAt: ts,
		Record:     record,
	})

	log.WithFields(log.Fields{"record_id": record.ID, "image": imageRef, "model": sub.ModelName, "label": record.Label}).Info("recorded sft feedback")
	return record.ID, nil
}

// RecordDPO stores one preference pair. Equal winner and loser model names are accepted as-is.
func (s *FeedbackService) RecordDPO(ctx context.Context, sub models.DPOSubmission) (string, error) {
	ctx = context.WithoutCancel(ctx)

	imageRef, err := s.saveImage(ctx, sub.Image)
	if err != nil {
		s.metrics.RecordFeedback(database.DatasetDPO, false)
		return "", err
	}

	id, ts := uuid.New(), s.now().UTC()
	record := models.DPORecord{
		ID:        id.String(),
		Timestamp: ts.Format(time.RFC3339Nano),
		Image:     imageRef,
		Chosen:    models.Turn{Query: sub.Query, Response: sub.ResponseWinner},
		Rejected:  models.Turn{Query: sub.Query, Response: sub.ResponseLoser},
		Metadata: models.DPOMetadata{
			WinnerModel: sub.ModelWinner,
			LoserModel:  sub.ModelLoser,
			Comment:     sub.Comment,
		},
	}

	if err := s.append(s.dpoLog, record, record.ID, imageRef); err != nil {
		s.metrics.RecordFeedback(database.DatasetDPO, false)
		return "", err
	}
	s.metrics.RecordFeedback(database.DatasetDPO, true)

	s.mirror(ctx, database.Entry{
		ID:         id,
		Dataset:    database.DatasetDPO,
		ImageRef:   imageRef,
		Model:      sub.ModelWinner,
		LogFile:    s.dpoLog.Path(),
		RecordedAt: ts,
		Record:     record,
	})

	log.WithFields(log.Fields{"record_id": record.ID, "image": imageRef, "winner": sub.ModelWinner, "loser": sub.ModelLoser}).Info("recorded dpo feedback")
	return record.ID, nil
}

// Counts reports records per dataset, from the index when one is configured and reachable.
func (s *FeedbackService) Counts(ctx context.Context) (models.FeedbackStatsResponse, error) {
	if s.index != nil {
		counts, err := s.index.Counts(ctx)
		if err == nil {
			return models.FeedbackStatsResponse{
				SFT:    counts[database.DatasetSFT],
				DPO:    counts[database.DatasetDPO],
				Source: "index",
			}, nil
		}
		log.WithError(err).Warn("feedback index unavailable, counting log lines")
	}

	sft, err := s.sftLog.Count()
	if err != nil {
		return models.FeedbackStatsResponse{}, backend.LocalIO(fmt.Errorf("failed to count sft log: %w", err))
	}
	dpo, err := s.dpoLog.Count()
	if err != nil {
		return models.FeedbackStatsResponse{}, backend.LocalIO(fmt.Errorf("failed to count dpo log: %w", err))
	}
	return models.FeedbackStatsResponse{SFT: sft, DPO: dpo, Source: "logs"}, nil
}

func (s *FeedbackService) saveImage(ctx context.Context, img models.ImageUpload) (string, error) {
	key := uuid.New().String() + "." + Extension(img.Filename)
	contentType := backend.DetectMimeType(img.Filename, img.ContentType)

	ref, err := s.images.Save(ctx, key, img.Data, contentType)
	if err != nil {
		return "", backend.LocalIO(fmt.Errorf("failed to store image: %w", err))
	}
	return ref, nil
}

// append never removes the stored image on failure; the orphan is logged for manual cleanup.
// A sync failure may leave the line in the log, so the record id is logged for de-duplication.
func (s *FeedbackService) append(l RecordLog, record any, recordID, imageRef string) error {
	if err := l.Append(record); err != nil {
		fields := log.Fields{"record_id": recordID, "image": imageRef, "log": l.Path()}
		if errors.Is(err, dataset.ErrNotDurable) {
			log.WithFields(fields).WithError(err).Warn("record written but not synced, it may be present in the log")
		} else {
			log.WithFields(fields).WithError(err).Warn("log append failed, stored image is orphaned")
		}
		return backend.LocalIO(fmt.Errorf("failed to append record: %w", err))
	}
	return nil
}

func (s *FeedbackService) mirror(ctx context.Context, e database.Entry) {
	if s.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.index.Insert(ctx, e); err != nil {
		log.WithField("record_id", e.ID).WithError(err).Warn("failed to mirror feedback record into index")
	}
}

// Extension returns the last dot-separated segment of filename, or jpg when there is none.
func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return defaultExtension
	}
	ext := filename[i+1:]
	if ext == "" || strings.ContainsAny(ext, `/\ `) {
		return defaultExtension
	}
	return ext
}

// IsLocalIO reports whether err is a local persistence failure.
func IsLocalIO(err error) bool {
	var berr *backend.Error
	return errors.As(err, &berr) && berr.Kind == backend.ErrLocalIO
}
