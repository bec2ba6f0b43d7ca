package schema

// Order is a purchase filling (part of) a listing
type Order struct {
	// ID is "<seller>-<buyer>-<listingId>"
	ID      string `gorm:"column:id;primaryKey;type:text"`
	ChainID uint64 `gorm:"column:chain_id;not null"`
	// ToID is the buyer
	ToID string `gorm:"column:to_id;not null;type:text;index"`
	// FromID is the seller
	FromID   string `gorm:"column:from_id;not null;type:text"`
	NftID    string `gorm:"column:nft_id;not null;type:text"`
	MarketID string `gorm:"column:market_id;not null;type:text;index"`
	Amount   string `gorm:"column:amount;not null;type:numeric(78,0)"`
	Currency string `gorm:"column:currency;type:text"`
	// Method is "card" for fiat purchases and "crypto" for on-chain ones
	Method    string `gorm:"column:method;not null;type:text"`
	Quantity  string `gorm:"column:quantity;not null;type:numeric(78,0)"`
	Timestamp string `gorm:"column:timestamp;not null;type:numeric(78,0)"`
}

func (Order) TableName() string {
	return "orders"
}
