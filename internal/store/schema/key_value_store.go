package schema

import "time"

// KeyValueStore holds process state such as the emitter's per-chain block cursors
type KeyValueStore struct {
	Key       string    `gorm:"column:key;primaryKey;type:text"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (KeyValueStore) TableName() string {
	return "key_value_store"
}
