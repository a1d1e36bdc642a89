package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a later algorithm migration.
const (
	DomainResolution = "predicate/resolution/v1"
	DomainSpecSet    = "predicate/specset/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ResolutionKey computes the content-addressed key of one resolution:
// the same resolution id, predicate, arguments and sequence number always
// give the same key, so replays of a recorded trace can be matched up.
func ResolutionKey(id, kind, name string, args []IRValue, seq int64) (string, error) {
	obj := IRObject{
		"id":   IRString(id),
		"kind": IRString(kind),
		"name": IRString(name),
		"args": IRArray(args),
		"seq":  IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ResolutionKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainResolution, canonical), nil
}

// MustResolutionKey is like ResolutionKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustResolutionKey(id, kind, name string, args []IRValue, seq int64) string {
	key, err := ResolutionKey(id, kind, name, args, seq)
	if err != nil {
		panic(err)
	}
	return key
}

// canonicalSpecSet marshals specs sorted by name, so the result does not
// depend on file load order.
func canonicalSpecSet(specs []*PredicateSpec) ([]byte, error) {
	sorted := make([]*PredicateSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	arr := make(IRArray, len(sorted))
	for i, s := range sorted {
		arr[i] = s.ToIR()
	}
	return MarshalCanonical(IRObject{"predicates": arr})
}

// SpecHash returns the domain-separated SHA-256 of a predicate set.
func SpecHash(specs []*PredicateSpec) (string, error) {
	canonical, err := canonicalSpecSet(specs)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpecSet, canonical), nil
}

// SpecCID returns a CIDv1 (raw codec, sha2-256 multihash) over the
// canonical JSON of a predicate set. Recorded resolutions carry it so a
// trace can be tied to the exact declarations that produced it.
func SpecCID(specs []*PredicateSpec) (cid.Cid, error) {
	canonical, err := canonicalSpecSet(specs)
	if err != nil {
		return cid.Undef, fmt.Errorf("SpecCID: failed to marshal: %w", err)
	}
	sum, err := multihash.Sum(canonical, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// ParseSpecCID parses a CID string as written by SpecCID.
func ParseSpecCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("invalid spec CID %q: %w", s, err)
	}
	if c.Prefix().MhType != multihash.SHA2_256 {
		return cid.Undef, fmt.Errorf("spec CID %q: unexpected multihash type %d", s, c.Prefix().MhType)
	}
	return c, nil
}
