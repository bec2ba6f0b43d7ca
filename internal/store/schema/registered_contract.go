package schema

import "time"

// RegisteredContract is a token contract whose logs the emitter follows
type RegisteredContract struct {
	ChainID uint64 `gorm:"column:chain_id;primaryKey"`
	Address string `gorm:"column:address;primaryKey;type:text"`
	// Standard is ERC721 or ERC1155
	Standard string `gorm:"column:standard;not null;type:text"`
	// FromBlock is the block of the deployment event
	FromBlock uint64    `gorm:"column:from_block;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (RegisteredContract) TableName() string {
	return "registered_contracts"
}
