// Package reqkey builds the deterministic keys that identify request cache
// entries and cached snapshots.
package reqkey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Canonical reduces params to the stable string that participates in the
// cache key. Strings pass through verbatim; nil means "no parameters";
// anything else is rendered as canonical JSON with object keys sorted at
// every depth, so two structurally equal values always produce the same key.
func Canonical(params any) (string, error) {
	switch p := params.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("canonicalize params: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("canonicalize params: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// Entry joins a path and canonical params into the request cache key. It is
// also the name of the store variable backing the entry, so it travels to the
// client inside the snapshot.
func Entry(path, canonicalParams string) string {
	if canonicalParams == "" {
		return path
	}
	return path + "?" + canonicalParams
}

// Snapshot digests a request target into the key used by the shared snapshot
// cache. The digest keeps keys short and uniform regardless of URL length.
func Snapshot(path, query string) string {
	h := xxhash.New()
	_, _ = h.WriteString(path)
	_, _ = h.WriteString("::")
	_, _ = h.WriteString(query)
	return fmt.Sprintf("snap:%016x", h.Sum64())
}
