package schema

// Market is a marketplace listing keyed by the on-chain listing id
type Market struct {
	ID           string `gorm:"column:id;primaryKey;type:text"`
	SellerID     string `gorm:"column:seller_id;not null;type:text;index"`
	NftID        string `gorm:"column:nft_id;not null;type:text;index"`
	IsActive     bool   `gorm:"column:is_active;not null"`
	PriceInUSD   string `gorm:"column:price_in_usd;not null;type:numeric(78,0)"`
	Quantity     string `gorm:"column:quantity;not null;type:numeric(78,0)"`
	SoldQuantity string `gorm:"column:sold_quantity;not null;type:numeric(78,0)"`
	Timestamp    string `gorm:"column:timestamp;not null;type:numeric(78,0)"`
	ChainID      uint64 `gorm:"column:chain_id;not null"`
}

func (Market) TableName() string {
	return "markets"
}
