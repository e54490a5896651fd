// SPDX-License-Identifier: MPL-2.0

// Package integrity writes and checks the integrity record of a container:
// a signature file listing a digest for every entry, and a detached ed25519
// signature over that file.
package integrity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/opencontainers/go-digest"

	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
)

const (
	// Algorithm is the only signature algorithm produced and accepted.
	Algorithm = "ed25519"

	attrSignatureVersion = "Signature-Version"
	attrDigestAlgorithm  = "Digest-Algorithm"
	attrDigest           = "Digest"
	signatureVersion     = "1.0"
)

// Status is the verdict of a verification.
type Status int

const (
	// Unsigned means the container carries no integrity record.
	Unsigned Status = iota
	// Valid means every entry matches the record and the signature holds.
	Valid
	// Tampered means an entry, the record or the signature does not match.
	Tampered
)

// String returns the verdict name printed by the verify tool.
func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Tampered:
		return "tampered"
	default:
		return "unsigned"
	}
}

// ErrMalformedKey is returned when a key file cannot be decoded.
var ErrMalformedKey = errors.New("malformed key")

type (
	// EntryDigest is the digest recorded for one entry.
	EntryDigest struct {
		Name   string
		Digest digest.Digest
	}

	// Record is the decoded signature file.
	Record struct {
		Entries []EntryDigest
	}

	// SignatureBlock is the JSON document stored in META-INF/BOOT.SIG.
	SignatureBlock struct {
		Algorithm string `json:"algorithm"`
		KeyID     string `json:"keyId"`
		PublicKey []byte `json:"publicKey"`
		Signature []byte `json:"signature"`
	}

	// Finding describes one problem found by Verify.
	Finding struct {
		// Entry is the offending entry; empty for record-level problems.
		Entry    string
		Expected string
		Actual   string
		Reason   string
	}

	// Result is the outcome of Verify.
	Result struct {
		Status   Status
		KeyID    string
		Entries  int
		Findings []Finding
	}
)

// Err returns an IntegrityError for the first finding of a tampered result
// and nil otherwise.
func (r *Result) Err() error {
	if r.Status != Tampered || len(r.Findings) == 0 {
		return nil
	}
	f := r.Findings[0]
	entry := f.Entry
	if entry == "" {
		entry = layout.SignatureFilePath
	}
	expected, actual := f.Expected, f.Actual
	if expected == "" && actual == "" {
		actual = f.Reason
	}
	return &launcherr.IntegrityError{Entry: entry, Expected: expected, Actual: actual}
}

// Digests computes the digest of every non-directory entry except the
// integrity record itself, sorted by name. Nested archives are digested as
// opaque payloads.
func Digests(src container.Source) ([]EntryDigest, error) {
	var out []EntryDigest
	for _, e := range src.Entries() {
		if e.Dir || layout.IsSignatureFile(e.Path) {
			continue
		}
		d, err := digestEntry(src, e.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, EntryDigest{Name: e.Path, Digest: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func digestEntry(src container.Source, name string) (digest.Digest, error) {
	rc, err := src.Open(name)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	d, err := digest.Canonical.FromReader(rc)
	if err != nil {
		return "", fmt.Errorf("failed to digest %s: %w", name, err)
	}
	return d, nil
}

// Bytes encodes the record as a signature file in manifest syntax.
func (r *Record) Bytes() []byte {
	m := layout.NewManifest()
	m.Main.Set(attrSignatureVersion, signatureVersion)
	m.Main.Set(attrDigestAlgorithm, string(digest.Canonical))
	m.Main.Set(layout.AttrCreatedBy, "bootpack")
	for _, e := range r.Entries {
		m.AddSection(e.Name, layout.Attribute{Key: attrDigest, Value: e.Digest.String()})
	}
	return m.Bytes()
}

// ParseRecord decodes a signature file.
func ParseRecord(data []byte) (*Record, error) {
	m, err := layout.ParseManifest(layout.SignatureFilePath, data)
	if err != nil {
		return nil, err
	}
	if v, _ := m.Main.Get(attrSignatureVersion); v != signatureVersion {
		return nil, launcherr.Format(layout.SignatureFilePath, 0, "unsupported %s %q", attrSignatureVersion, v)
	}
	r := &Record{}
	for _, s := range m.Sections {
		raw, ok := s.Attrs.Get(attrDigest)
		if !ok {
			return nil, launcherr.Format(layout.SignatureFilePath, 0, "entry %q has no %s", s.Name, attrDigest)
		}
		d, err := digest.Parse(raw)
		if err != nil {
			return nil, launcherr.Format(layout.SignatureFilePath, 0, "entry %q: %v", s.Name, err)
		}
		r.Entries = append(r.Entries, EntryDigest{Name: s.Name, Digest: d})
	}
	return r, nil
}

// Sign computes the record of src and signs it with key. It returns the
// record with the encoded signature file and signature block.
func Sign(src container.Source, key ed25519.PrivateKey) (rec *Record, sf, block []byte, err error) {
	entries, err := Digests(src)
	if err != nil {
		return nil, nil, nil, err
	}
	rec = &Record{Entries: entries}
	sf = rec.Bytes()

	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return nil, nil, nil, ErrMalformedKey
	}
	block, err = json.MarshalIndent(SignatureBlock{
		Algorithm: Algorithm,
		KeyID:     KeyID(pub),
		PublicKey: pub,
		Signature: ed25519.Sign(key, sf),
	}, "", "  ")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode signature block: %w", err)
	}
	return rec, sf, block, nil
}
