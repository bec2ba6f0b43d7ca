package schema

import "gorm.io/datatypes"

// Nft is a single token of a collection, keyed "<collection>-<tokenId>"
type Nft struct {
	ID           string `gorm:"column:id;primaryKey;type:text"`
	TokenID      string `gorm:"column:token_id;not null;type:numeric(78,0)"`
	OwnerID      string `gorm:"column:owner_id;not null;type:text;index"`
	CollectionID string `gorm:"column:collection_id;not null;type:text;index"`
	ChainID      uint64 `gorm:"column:chain_id;not null"`
	// Standard is ERC721 or ERC1155
	Standard string `gorm:"column:standard;not null;type:text"`
	// Supply is "1" for ERC721 and the minted amount for ERC1155
	Supply      string `gorm:"column:supply;not null;type:text"`
	Image       string `gorm:"column:image;type:text"`
	Name        string `gorm:"column:name;type:text"`
	Description string `gorm:"column:description;type:text"`
	TokenURI    string `gorm:"column:token_uri;type:text"`
	// Attributes is the ordered attribute list as a JSON array
	Attributes datatypes.JSON `gorm:"column:attributes;type:jsonb"`
	// Categories is a comma-joined list of category slugs
	Categories string  `gorm:"column:categories;type:text"`
	IsPhygital bool    `gorm:"column:is_phygital;not null;default:false"`
	MarketID   *string `gorm:"column:market_id;type:text"`

	// OwnerAt and MarketAt guard owner_id and market_id against
	// redelivered events older than the last write
	OwnerAt  EventPosition `gorm:"embedded;embeddedPrefix:owner_"`
	MarketAt EventPosition `gorm:"embedded;embeddedPrefix:market_"`
}

func (Nft) TableName() string {
	return "nfts"
}
