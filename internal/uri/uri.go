package uri

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

const ipfsScheme = "ipfs://"

// ExpandTokenID substitutes the ERC1155 {id} placeholder with the
// lowercase, zero padded, 64 character hex form of tokenID
func ExpandTokenID(uri string, tokenID string) string {
	if !strings.Contains(uri, "{id}") {
		return uri
	}
	n, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return strings.ReplaceAll(uri, "{id}", tokenID)
	}
	return strings.ReplaceAll(uri, "{id}", fmt.Sprintf("%064x", n))
}

// IPFSPath returns the "<cid>/<path>" part of an IPFS reference. It accepts
// ipfs://, ipfs://ipfs/, bare /ipfs/ paths and http(s) gateway URLs.
func IPFSPath(uri string) (string, bool) {
	uri = strings.TrimSpace(uri)

	if after, ok := strings.CutPrefix(uri, ipfsScheme); ok {
		after = strings.TrimPrefix(after, "ipfs/")
		return after, after != ""
	}

	if after, ok := strings.CutPrefix(uri, "/ipfs/"); ok {
		return after, after != ""
	}

	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", false
		}
		if _, after, found := strings.Cut(u.Path, "/ipfs/"); found && after != "" {
			return after, true
		}
	}

	return "", false
}

// GatewayURL builds "<gateway>/ipfs/<path>"
func GatewayURL(gateway string, path string) string {
	return fmt.Sprintf("%s/ipfs/%s", strings.TrimRight(gateway, "/"), path)
}

// ToGateway rewrites an IPFS reference to be served by gateway. Other URIs are returned unchanged.
func ToGateway(uri string, gateway string) string {
	if path, ok := IPFSPath(uri); ok {
		return GatewayURL(gateway, path)
	}
	return uri
}

// DecodeDataURI returns the payload of a data: URI, base64 decoded when flagged
func DecodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("invalid data URI")
	}

	mediaType, data, found := strings.Cut(rest, ",")
	if !found {
		return nil, fmt.Errorf("invalid data URI format")
	}

	if strings.HasSuffix(mediaType, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
		return decoded, nil
	}

	unescaped, err := url.PathUnescape(data)
	if err != nil {
		return []byte(data), nil
	}
	return []byte(unescaped), nil
}
