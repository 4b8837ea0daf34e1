// Package contentaddr handles content-addressed identifiers: certificate
// fingerprints and ipfs:// URIs recorded by the ledger.
package contentaddr

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const (
	// Scheme prefixes content-addressed URIs.
	Scheme = "ipfs://"
	// DefaultGateway serves ipfs content over HTTP.
	DefaultGateway = "https://gateway.pinata.cloud/ipfs/"
)

// ErrNotContentAddressed is returned for URIs outside the ipfs scheme.
var ErrNotContentAddressed = errors.New("uri does not use the ipfs scheme")

// Fingerprint returns the CIDv1 (raw, sha2-256) of data.
func Fingerprint(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// ParseURI extracts the CID from an ipfs:// URI. Paths after the CID are ignored.
func ParseURI(uri string) (cid.Cid, error) {
	rest, ok := strings.CutPrefix(uri, Scheme)
	if !ok {
		return cid.Undef, ErrNotContentAddressed
	}
	rest = strings.TrimPrefix(rest, "ipfs/")
	root, _, _ := strings.Cut(rest, "/")
	return cid.Decode(root)
}

// SameAsset reports whether two URIs name the same content. ipfs:// URIs are
// compared by multihash so CIDv0 and CIDv1 forms of one asset match.
func SameAsset(a, b string) bool {
	if a == b {
		return true
	}
	ca, errA := ParseURI(a)
	cb, errB := ParseURI(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ca.Hash(), cb.Hash())
}

// Resolver rewrites content-addressed URIs into gateway URLs.
type Resolver struct {
	gateway string
}

// NewResolver creates a resolver for gateway; DefaultGateway when empty.
func NewResolver(gateway string) *Resolver {
	if gateway == "" {
		gateway = DefaultGateway
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &Resolver{gateway: gateway}
}

// ImageURL substitutes the ipfs:// prefix with the gateway and keeps the rest
// of the URI as is. Other URIs pass through unchanged.
func (r *Resolver) ImageURL(tokenURI string) string {
	rest, ok := strings.CutPrefix(tokenURI, Scheme)
	if !ok {
		return tokenURI
	}
	return r.gateway + rest
}

// Gateway returns the configured gateway base.
func (r *Resolver) Gateway() string {
	return r.gateway
}
