package resolver

import (
	"bytes"

	"github.com/weisyn/viewd/internal/domain"
)

// Key layout (spec.md §6, bit-exact):
//
//	latest_block_height
//	code:{C}                (ordered set, member=revision, score=height)
//	code:{C}:{R}            (bytecode blob)
//	account:{C}             (ordered set)
//	account-data:{C}:{R}    (binary account record)
//	data:{C}:{key}          (ordered set)
//	data-value:{C}:{key}:{R} (raw value bytes)
//
// {C} and {key} are raw bytes; delimiters are literal colon bytes (0x3A).

var (
	latestHeightKey = []byte("latest_block_height")
)

func codeSetKey(c domain.ContractID) []byte {
	return join("code", []byte(c))
}

func codeBlobKey(c domain.ContractID, r domain.RevisionHash) []byte {
	return join("code", []byte(c), r)
}

func accountSetKey(c domain.ContractID) []byte {
	return join("account", []byte(c))
}

func accountBlobKey(c domain.ContractID, r domain.RevisionHash) []byte {
	return join("account-data", []byte(c), r)
}

// CompositeDataKey is the contract-scoped storage key: the contract
// identifier byte-concatenated with a separator and a contract-chosen key
// (spec.md §3 "Storage entry").
func CompositeDataKey(c domain.ContractID, key []byte) []byte {
	return join([]byte(c), key)
}

func dataSetKey(composite []byte) []byte {
	return join("data", composite)
}

func dataBlobKey(composite []byte, r domain.RevisionHash) []byte {
	return join("data-value", composite, r)
}

func dataScanPrefix(c domain.ContractID) []byte {
	return append(join("data", []byte(c)), ':')
}

// SplitCompositeKey strips the "data:" and "{C}:" prefixes from a raw
// versioned-store set key, returning the contract-chosen storage key, per
// spec.md §4.2's scan_data_keys contract.
func SplitCompositeKey(c domain.ContractID, setKey []byte) ([]byte, bool) {
	prefix := dataScanPrefix(c)
	if !bytes.HasPrefix(setKey, prefix) {
		return nil, false
	}
	return setKey[len(prefix):], true
}

func join(parts ...interface{}) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(':')
		}
		switch v := p.(type) {
		case string:
			buf.WriteString(v)
		case []byte:
			buf.Write(v)
		case domain.RevisionHash:
			buf.Write(v)
		}
	}
	return buf.Bytes()
}
