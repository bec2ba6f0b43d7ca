package schema

// Collection is a token contract deployed by the factory
type Collection struct {
	// ID is the contract address
	ID              string `gorm:"column:id;primaryKey;type:text"`
	ContractAddress string `gorm:"column:contract_address;not null;type:text"`
	IsERC1155       bool   `gorm:"column:is_erc1155;not null"`
	Name            string `gorm:"column:name;type:text"`
	Symbol          string `gorm:"column:symbol;type:text"`
	URI             string `gorm:"column:uri;type:text"`
	OwnerID         string `gorm:"column:owner_id;type:text;index"`
	ChainID         uint64 `gorm:"column:chain_id;not null"`
}

func (Collection) TableName() string {
	return "collections"
}
