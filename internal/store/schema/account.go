package schema

// Account anchors every address seen as a transfer, listing or order party
type Account struct {
	ID string `gorm:"column:id;primaryKey;type:text"`
}

func (Account) TableName() string {
	return "accounts"
}
