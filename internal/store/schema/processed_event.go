package schema

import "time"

// ProcessedEvent records every event whose changes were committed so redeliveries are skipped
type ProcessedEvent struct {
	// ID is "<chainId>-<txHash>-<logIndex>"
	ID          string    `gorm:"column:id;primaryKey;type:text"`
	ChainID     uint64    `gorm:"column:chain_id;not null"`
	BlockNumber uint64    `gorm:"column:block_number;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProcessedEvent) TableName() string {
	return "processed_events"
}
