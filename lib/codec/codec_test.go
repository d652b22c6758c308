// Copyright 2026 The Depot Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sampleRecord struct {
	Name   string            `cbor:"name"`
	Count  int               `cbor:"count"`
	Labels map[string]string `cbor:"labels,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Name:  "toolchain/stable",
		Count: 3,
		Labels: map[string]string{
			"arch": "amd64",
			"os":   "linux",
		},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Name != original.Name || decoded.Count != original.Count {
		t.Errorf("decoded %+v, want %+v", decoded, original)
	}
	if decoded.Labels["arch"] != "amd64" {
		t.Errorf("labels = %v", decoded.Labels)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	// Map iteration order is random in Go; deterministic encoding must
	// hide that.
	record := sampleRecord{
		Name: "d",
		Labels: map[string]string{
			"z": "1", "a": "2", "m": "3", "q": "4",
		},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(record)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding %d differs from the first", i)
		}
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	// A record written by a newer revision with extra fields must still
	// decode into the fields this revision knows.
	extended := struct {
		Name  string `cbor:"name"`
		Count int    `cbor:"count"`
		Extra string `cbor:"extra"`
	}{Name: "x", Count: 7, Extra: "from the future"}

	data, err := Marshal(extended)
	if err != nil {
		t.Fatal(err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed on unknown field: %v", err)
	}
	if decoded.Name != "x" || decoded.Count != 7 {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestUnmarshalIntoAny(t *testing.T) {
	data, err := Marshal(map[string]any{"key": "value"})
	if err != nil {
		t.Fatal(err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type %T, want map[string]any", decoded)
	}
	if m["key"] != "value" {
		t.Errorf("m = %v", m)
	}
}
