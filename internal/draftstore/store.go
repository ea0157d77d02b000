package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mvharris/tabwire/internal/terminal"
	"github.com/mvharris/tabwire/pkg/enums"
	pkgerrors "github.com/mvharris/tabwire/pkg/errors"
	"github.com/mvharris/tabwire/pkg/logger"
)

// draftRecord is the single staged draft row. Only an order that has never
// been persisted is worth keeping; once the server owns it, the authoritative
// copy survives a terminal restart on its own.
type draftRecord struct {
	ID          int    `gorm:"primaryKey"`
	DraftID     string `gorm:"column:draft_id"`
	LocationID  string `gorm:"column:location_id"`
	Kind        string `gorm:"column:kind"`
	TabName     *string
	TableNumber *string
	ItemsJSON   string    `gorm:"column:items_json"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (draftRecord) TableName() string {
	return "staged_drafts"
}

// Draft is the staged order restored at terminal startup.
type Draft struct {
	DraftID     string
	LocationID  uuid.UUID
	Kind        enums.OrderKind
	TabName     *string
	TableNumber *string
	Items       []terminal.LocalItem
}

// Store persists the terminal's staged draft in a local SQLite file so a
// power cycle does not lose an unsent cart.
type Store struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewStore opens (and migrates) the draft database at path.
func NewStore(path string, logg *logger.Logger) (*Store, error) {
	if path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "draft db path required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open draft db")
	}
	if err := db.AutoMigrate(&draftRecord{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "migrate draft db")
	}
	return &Store{db: db, logg: logg}, nil
}

// Save stages the current order. A persisted order clears the stage instead;
// the server copy is authoritative from that point on.
func (s *Store) Save(ctx context.Context, snap terminal.Snapshot) error {
	if snap.Persisted() {
		return s.Clear(ctx)
	}

	items, err := json.Marshal(snap.Items)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode staged items")
	}

	record := draftRecord{
		ID:          1,
		DraftID:     snap.DraftID,
		LocationID:  snap.LocationID.String(),
		Kind:        string(snap.Kind),
		TabName:     snap.TabName,
		TableNumber: snap.TableNumber,
		ItemsJSON:   string(items),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stage draft")
	}
	return nil
}

// Load returns the staged draft, or nil when nothing is staged.
func (s *Store) Load(ctx context.Context) (*Draft, error) {
	var record draftRecord
	err := s.db.WithContext(ctx).First(&record, 1).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load staged draft")
	}

	locationID, err := uuid.Parse(record.LocationID)
	if err != nil {
		// A corrupted stage is dropped; a fresh cart beats a crash loop.
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping corrupted staged draft")
		return nil, s.Clear(ctx)
	}

	var items []terminal.LocalItem
	if record.ItemsJSON != "" {
		if err := json.Unmarshal([]byte(record.ItemsJSON), &items); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping corrupted staged draft")
			return nil, s.Clear(ctx)
		}
	}

	return &Draft{
		DraftID:     record.DraftID,
		LocationID:  locationID,
		Kind:        enums.OrderKind(record.Kind),
		TabName:     record.TabName,
		TableNumber: record.TableNumber,
		Items:       items,
	}, nil
}

// Clear removes the staged draft.
func (s *Store) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Delete(&draftRecord{}, 1).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear staged draft")
	}
	return nil
}
