// interfaces.go: this code defines the interface for the history store
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/observability/metrics"
)

const (
	tableCaptures = "captures"

	// DefaultQueryLimit is used when a query asks for zero rows.
	DefaultQueryLimit = 50
	// MaxQueryLimit caps a single page of history.
	MaxQueryLimit = 500
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Save(capture *Capture, results []Results) error
	Get(id uint) (Capture, error)
	GetByRequestID(requestID string) (Capture, error)
	Latest(limit, offset int) ([]Capture, error)
	SearchByLabel(label string, limit, offset int) ([]Capture, error)
	LabelCounts(since time.Time) ([]LabelCount, error)
	Count() (int64, error)
	Delete(id uint) error
	Close() error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB
	metrics *metrics.DatastoreMetrics
}

// New returns the store selected in settings, or nil when history is disabled.
func New(settings *conf.Settings, m *metrics.DatastoreMetrics) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{metrics: m},
			Path:      settings.Output.SQLite.Path,
			Debug:     settings.Debug,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{metrics: m},
			Settings:  settings.Output.MySQL,
			Debug:     settings.Debug,
		}
	default:
		return nil
	}
}

// NewCapture builds a Capture and its Results from ranked recognitions.
func NewCapture(requestID, source, fileName, model string, orientation int, recs []classifier.Recognition, took time.Duration) (*Capture, []Results) {
	c := &Capture{
		RequestID:      requestID,
		Source:         source,
		FileName:       fileName,
		Orientation:    orientation,
		Model:          model,
		ProcessingTime: took,
	}
	if len(recs) > 0 {
		c.TopLabel = recs[0].Label
		c.TopConfidence = recs[0].Confidence
	}

	results := make([]Results, len(recs))
	for i, r := range recs {
		results[i] = Results{Position: i + 1, Label: r.Label, Confidence: r.Confidence}
	}
	return c, results
}

// Save stores a capture and its results as a single transaction.
func (ds *DataStore) Save(capture *Capture, results []Results) error {
	if ds.DB == nil {
		return errNotOpen()
	}
	start := time.Now()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Results").Create(capture).Error; err != nil {
			return fmt.Errorf("saving capture: %w", err)
		}
		for i := range results {
			results[i].CaptureID = capture.ID
		}
		if len(results) > 0 {
			if err := tx.Create(&results).Error; err != nil {
				return fmt.Errorf("saving results: %w", err)
			}
		}
		return nil
	})

	ds.record("save", start, err)
	if err != nil {
		return dbError(err, "save")
	}
	capture.Results = results
	return nil
}

// Get retrieves a capture with its results by ID.
func (ds *DataStore) Get(id uint) (Capture, error) {
	if ds.DB == nil {
		return Capture{}, errNotOpen()
	}
	start := time.Now()

	var capture Capture
	err := ds.DB.Preload("Results", orderByPosition).First(&capture, id).Error
	ds.record("get", start, err)
	if err != nil {
		return Capture{}, dbError(err, "get")
	}
	return capture, nil
}

// GetByRequestID retrieves a capture by the request ID assigned at submission.
func (ds *DataStore) GetByRequestID(requestID string) (Capture, error) {
	if ds.DB == nil {
		return Capture{}, errNotOpen()
	}
	start := time.Now()

	var capture Capture
	err := ds.DB.Preload("Results", orderByPosition).Where("request_id = ?", requestID).First(&capture).Error
	ds.record("get", start, err)
	if err != nil {
		return Capture{}, dbError(err, "get")
	}
	return capture, nil
}

// Latest returns the most recent captures, newest first.
func (ds *DataStore) Latest(limit, offset int) ([]Capture, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}
	start := time.Now()

	var captures []Capture
	err := ds.DB.Preload("Results", orderByPosition).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Offset(max(0, offset)).
		Find(&captures).Error
	ds.record("latest", start, err)
	if err != nil {
		return nil, dbError(err, "latest")
	}
	return captures, nil
}

// SearchByLabel returns captures whose top label equals label, newest first.
func (ds *DataStore) SearchByLabel(label string, limit, offset int) ([]Capture, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}
	start := time.Now()

	var captures []Capture
	err := ds.DB.Preload("Results", orderByPosition).
		Where("top_label = ?", label).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Offset(max(0, offset)).
		Find(&captures).Error
	ds.record("search", start, err)
	if err != nil {
		return nil, dbError(err, "search")
	}
	return captures, nil
}

// LabelCounts returns how often each label won since the given time, most
// frequent first.
func (ds *DataStore) LabelCounts(since time.Time) ([]LabelCount, error) {
	if ds.DB == nil {
		return nil, errNotOpen()
	}
	start := time.Now()

	var counts []LabelCount
	err := ds.DB.Model(&Capture{}).
		Select("top_label AS label, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("top_label").
		Order("count DESC, label ASC").
		Scan(&counts).Error
	ds.record("label_counts", start, err)
	if err != nil {
		return nil, dbError(err, "label_counts")
	}
	return counts, nil
}

// Count returns the number of stored captures.
func (ds *DataStore) Count() (int64, error) {
	if ds.DB == nil {
		return 0, errNotOpen()
	}
	var n int64
	if err := ds.DB.Model(&Capture{}).Count(&n).Error; err != nil {
		return 0, dbError(err, "count")
	}
	return n, nil
}

// Delete removes a capture and its results.
func (ds *DataStore) Delete(id uint) error {
	if ds.DB == nil {
		return errNotOpen()
	}
	start := time.Now()

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("capture_id = ?", id).Delete(&Results{}).Error; err != nil {
			return fmt.Errorf("deleting results: %w", err)
		}
		res := tx.Delete(&Capture{}, id)
		if res.Error != nil {
			return fmt.Errorf("deleting capture: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	ds.record("delete", start, err)
	if err != nil {
		return dbError(err, "delete")
	}
	return nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultQueryLimit
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return limit
	}
}

func (ds *DataStore) record(operation string, start time.Time, err error) {
	if ds.metrics == nil {
		return
	}
	ds.metrics.RecordDbOperationDuration(operation, tableCaptures, time.Since(start).Seconds())
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		ds.metrics.RecordDbOperation(operation, tableCaptures, metrics.StatusError)
		ds.metrics.RecordDbOperationError(operation, tableCaptures, "query")
		return
	}
	ds.metrics.RecordDbOperation(operation, tableCaptures, metrics.StatusSuccess)
}

// dbError wraps a GORM error; missing records map to the not-found category.
func dbError(err error, operation string) error {
	category := errors.CategoryDatabase
	if errors.Is(err, gorm.ErrRecordNotFound) {
		category = errors.CategoryNotFound
	}
	return errors.New(err).
		Component("datastore").
		Category(category).
		Context("operation", operation).
		Build()
}

func errNotOpen() error {
	return errors.Newf("database connection is not initialized").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}
