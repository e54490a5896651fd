// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"bytes"
	"crypto/ed25519"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/layout"
)

// VerifyOptions configures Verify.
type VerifyOptions struct {
	// TrustedKey pins the public key the record must be signed with. When
	// nil, the key embedded in the signature block is accepted.
	TrustedKey ed25519.PublicKey
	Logger     *slog.Logger
}

// Verify checks the integrity record of src. It returns Unsigned when the
// container has no signature file, Tampered with the offending entries when
// anything disagrees, and Valid otherwise. An entry that cannot be read back
// (e.g. a failed CRC) counts as tampered; the error is reserved for a
// container that cannot be opened strictly or a record that cannot be read.
func Verify(src container.Source, opts VerifyOptions) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := container.CheckStrict(src); err != nil {
		return nil, err
	}
	res := &Result{Status: Valid}

	if _, ok := src.Stat(layout.SignatureFilePath); !ok {
		if _, hasBlock := src.Stat(layout.SignatureBlockPath); hasBlock {
			res.tamper(Finding{Entry: layout.SignatureFilePath, Reason: "signature block without signature file"})
			return res, nil
		}
		res.Status = Unsigned
		return res, nil
	}

	sf, err := container.ReadFile(src, layout.SignatureFilePath)
	if err != nil {
		return nil, err
	}
	rec, err := ParseRecord(sf)
	if err != nil {
		res.tamper(Finding{Entry: layout.SignatureFilePath, Reason: "malformed signature file: " + err.Error()})
		return res, nil
	}
	res.Entries = len(rec.Entries)

	checkSignature(src, sf, opts.TrustedKey, res)

	recorded := make(map[string]bool, len(rec.Entries))
	for _, e := range rec.Entries {
		recorded[e.Name] = true
		entry, ok := src.Stat(e.Name)
		if !ok || entry.Dir {
			res.tamper(Finding{Entry: e.Name, Expected: e.Digest.String(), Reason: "entry missing"})
			continue
		}
		actual, err := digestEntry(src, e.Name)
		if err != nil {
			res.tamper(Finding{Entry: e.Name, Expected: e.Digest.String(), Reason: "unreadable entry: " + err.Error()})
			continue
		}
		if actual != e.Digest {
			res.tamper(Finding{Entry: e.Name, Expected: e.Digest.String(), Actual: actual.String(), Reason: "digest mismatch"})
		}
	}
	for _, e := range src.Entries() {
		if e.Dir || layout.IsSignatureFile(e.Path) || recorded[e.Path] {
			continue
		}
		res.tamper(Finding{Entry: e.Path, Reason: "entry not covered by the signature file"})
	}

	opts.Logger.Debug("integrity verified", "container", src.Location(), "status", res.Status.String(), "findings", len(res.Findings))
	return res, nil
}

func checkSignature(src container.Source, sf []byte, trusted ed25519.PublicKey, res *Result) {
	if _, ok := src.Stat(layout.SignatureBlockPath); !ok {
		res.tamper(Finding{Entry: layout.SignatureBlockPath, Reason: "signature block missing"})
		return
	}
	data, err := container.ReadFile(src, layout.SignatureBlockPath)
	if err != nil {
		res.tamper(Finding{Entry: layout.SignatureBlockPath, Reason: "unreadable signature block"})
		return
	}
	var block SignatureBlock
	if err := json.Unmarshal(data, &block); err != nil {
		res.tamper(Finding{Entry: layout.SignatureBlockPath, Reason: "malformed signature block"})
		return
	}
	res.KeyID = block.KeyID
	switch {
	case block.Algorithm != Algorithm:
		res.tamper(Finding{Entry: layout.SignatureBlockPath, Reason: "unsupported algorithm " + block.Algorithm})
	case len(block.PublicKey) != ed25519.PublicKeySize:
		res.tamper(Finding{Entry: layout.SignatureBlockPath, Reason: "malformed public key"})
	case !ed25519.Verify(ed25519.PublicKey(block.PublicKey), sf, block.Signature):
		res.tamper(Finding{Entry: layout.SignatureBlockPath, Reason: "signature does not match the signature file"})
	case trusted != nil && !bytes.Equal(trusted, block.PublicKey):
		res.tamper(Finding{
			Entry:    layout.SignatureBlockPath,
			Expected: KeyID(trusted),
			Actual:   KeyID(ed25519.PublicKey(block.PublicKey)),
			Reason:   "signed with an untrusted key",
		})
	}
}

func (r *Result) tamper(f Finding) {
	r.Status = Tampered
	r.Findings = append(r.Findings, f)
}
