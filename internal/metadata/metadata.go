package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sokos-io/nft-indexer/internal/domain"
)

// Metadata is the resolved display metadata of a token. Every field is
// populated; values that could not be resolved carry domain.UNKNOWN.
type Metadata struct {
	Image       string        `json:"image"`
	Name        string        `json:"name"`
	TokenURL    string        `json:"tokenUrl"`
	Description string        `json:"description"`
	Attributes  []interface{} `json:"attributes"`
	// IsPhygital is "true", "false" or "unknown"
	IsPhygital string `json:"isPhygital"`
	Standard   string `json:"standard"`
	Supply     string `json:"supply"`
	// Categories is a comma separated list of category slugs
	Categories string `json:"categories"`
}

// Unknown returns the record used when no tier could resolve a token
func Unknown() *Metadata {
	return &Metadata{
		Image:       domain.UNKNOWN,
		Name:        domain.UNKNOWN,
		TokenURL:    domain.UNKNOWN,
		Description: domain.UNKNOWN,
		Attributes:  []interface{}{domain.UNKNOWN},
		IsPhygital:  domain.UNKNOWN,
		Standard:    domain.UNKNOWN,
		Supply:      domain.UNKNOWN,
		Categories:  domain.UNKNOWN,
	}
}

// Phygital reports whether the token is backed by a physical item
func (m *Metadata) Phygital() bool {
	return m.IsPhygital == "true"
}

// TokenRef identifies the token to resolve
type TokenRef struct {
	Standard     domain.Standard
	ChainID      uint64
	TokenAddress string
	TokenID      string
}

// CacheKey is "<lowercase address>-<tokenId>"
func (t TokenRef) CacheKey() string {
	return fmt.Sprintf("%s-%s", strings.ToLower(t.TokenAddress), t.TokenID)
}

func (t TokenRef) String() string {
	return fmt.Sprintf("%d:%s:%s", t.ChainID, t.TokenAddress, t.TokenID)
}

// stringify renders a loosely typed JSON value as text. Strings are kept as
// is, anything structured is JSON encoded.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// phygitalFlag normalizes a boolean-ish value to "true" or "false"
func phygitalFlag(v interface{}) string {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return strconv.FormatBool(b)
		}
	}
	return "false"
}

// attributeList returns v as a list, wrapping a scalar and defaulting to empty
func attributeList(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		return val
	default:
		return []interface{}{val}
	}
}
