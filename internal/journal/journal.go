package journal

import (
	"context"
	"time"

	"crossarb/internal/model"
	"crossarb/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

const maxReasonLen = 512

// TradeRecord is one maker cycle outcome.
type TradeRecord struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	CycleID      uint64          `gorm:"index"`
	Outcome      string          `gorm:"size:16;index"`
	MakerVenue   string          `gorm:"size:16"`
	MakerOrderID string          `gorm:"size:128"`
	MakerSide    string          `gorm:"size:8"`
	MakerPrice   decimal.Decimal `gorm:"type:numeric"`
	MakerQty     decimal.Decimal `gorm:"type:numeric"`
	FilledQty    decimal.Decimal `gorm:"type:numeric"`
	HedgeVenue   string          `gorm:"size:16"`
	HedgeOrderID string          `gorm:"size:128"`
	HedgeSide    string          `gorm:"size:8"`
	HedgePrice   decimal.Decimal `gorm:"type:numeric"`
	HedgeQty     decimal.Decimal `gorm:"type:numeric"`
	LongSpread   decimal.Decimal `gorm:"type:numeric"`
	ShortSpread  decimal.Decimal `gorm:"type:numeric"`
	Reason       string          `gorm:"size:512"`
	CreatedAt    time.Time       `gorm:"index"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

// Journal appends cycle outcomes to a gorm database.
type Journal struct {
	db *gorm.DB
}

// New migrates the schema and returns a journal.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	if err := db.AutoMigrate(&TradeRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate trade records")
	}
	return &Journal{db: db}, nil
}

func fromOutcome(o model.CycleOutcome) TradeRecord {
	r := TradeRecord{
		CycleID:      o.CycleID,
		Outcome:      o.Kind.String(),
		MakerOrderID: o.Maker.ID,
		MakerPrice:   o.Maker.LimitPrice,
		MakerQty:     o.Maker.Quantity,
		FilledQty:    o.Maker.FilledQuantity,
		HedgeOrderID: o.HedgeOrderID,
		HedgePrice:   o.Hedge.Price,
		HedgeQty:     o.Hedge.Quantity,
		LongSpread:   o.LongSpread,
		ShortSpread:  o.ShortSpread,
		Reason:       o.Reason,
		CreatedAt:    o.At,
	}
	if o.Maker.Venue.IsAvailable() {
		r.MakerVenue = o.Maker.Venue.String()
	}
	if o.Maker.Side.IsAvailable() {
		r.MakerSide = o.Maker.Side.String()
	}
	if o.Hedge.Venue.IsAvailable() {
		r.HedgeVenue = o.Hedge.Venue.String()
	}
	if o.Hedge.Side.IsAvailable() {
		r.HedgeSide = o.Hedge.Side.String()
	}
	if len(r.Reason) > maxReasonLen {
		r.Reason = r.Reason[:maxReasonLen]
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return r
}

// Record appends one outcome.
func (j *Journal) Record(ctx context.Context, o model.CycleOutcome) error {
	r := fromOutcome(o)
	if err := j.db.WithContext(ctx).Create(&r).Error; err != nil {
		return errors.Wrapf(err, "insert trade record of cycle %d", o.CycleID)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []TradeRecord
	err := j.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "query trade records")
	}
	return records, nil
}

// CountByOutcome returns the number of records per outcome.
func (j *Journal) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Outcome string
		Total   int64
	}
	err := j.db.WithContext(ctx).
		Model(&TradeRecord{}).
		Select("outcome, COUNT(*) AS total").
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count trade records")
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Outcome] = row.Total
	}
	return out, nil
}
