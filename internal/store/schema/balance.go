package schema

// Balance is one append-only ledger record per transfer, not a running total
type Balance struct {
	// ID is "<to>-<from>-<collection>-<tokenId>-<quantity>"
	ID           string `gorm:"column:id;primaryKey;type:text"`
	CollectionID string `gorm:"column:collection_id;not null;type:text"`
	NftID        string `gorm:"column:nft_id;not null;type:text;index"`
	Quantity     string `gorm:"column:quantity;not null;type:numeric(78,0)"`
	ChainID      uint64 `gorm:"column:chain_id;not null"`
	// AccountID is the recipient
	AccountID string `gorm:"column:account_id;not null;type:text;index"`
	FromID    string `gorm:"column:from_id;not null;type:text"`
	// Timestamp is the block timestamp in unix seconds
	Timestamp int64 `gorm:"column:timestamp;not null"`
}

func (Balance) TableName() string {
	return "balances"
}
