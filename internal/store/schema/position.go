package schema

// EventPosition is the canonical (block, log index) of the event that last
// wrote a field group of a row
type EventPosition struct {
	BlockNumber uint64 `gorm:"column:block_number;not null;default:0"`
	LogIndex    uint   `gorm:"column:log_index;not null;default:0"`
}

// Before reports whether p precedes other in chain order
func (p EventPosition) Before(other EventPosition) bool {
	if p.BlockNumber != other.BlockNumber {
		return p.BlockNumber < other.BlockNumber
	}
	return p.LogIndex < other.LogIndex
}
