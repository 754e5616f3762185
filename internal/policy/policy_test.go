package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("7.6.1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(v) != 3 || v[0] != 7 || v[1] != 6 || v[2] != 1 {
		t.Fatalf("unexpected components: %v", v)
	}
	if v.String() != "7.6.1" {
		t.Fatalf("unexpected string form %q", v.String())
	}
}

func TestParseVersionRejectsNonNumeric(t *testing.T) {
	for _, input := range []string{"7.x", "", "7..6", "-1.2", "7.6beta", "+7"} {
		_, err := ParseVersion(input)
		if err == nil {
			t.Fatalf("expected error for %q", input)
		}
		if !errors.Is(err, ErrParse) {
			t.Fatalf("expected ErrParse for %q, got %v", input, err)
		}
		var perr *ParseError
		if !errors.As(err, &perr) || perr.Input != input {
			t.Fatalf("expected ParseError carrying input %q, got %v", input, err)
		}
	}
}

func TestCompareZeroPadsShorterVersion(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"7.6", "7.6", 0},
		{"7.6.0", "7.6", 0},
		{"7", "7.6", -1},
		{"8", "7.6", 1},
		{"7.10", "7.9", 1},
		{"7.5.9", "7.6", -1},
	}
	for _, tc := range cases {
		a, _ := ParseVersion(tc.a)
		b, _ := ParseVersion(tc.b)
		if got := Compare(a, b); got != tc.want {
			t.Fatalf("Compare(%s, %s) = %d want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNewLowercasesAndRejectsDuplicates(t *testing.T) {
	p, err := New(Entry{ID: " RHEL ", Minimum: "7.6"}, Entry{ID: "centos", Minimum: "7.9"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if min, ok := p.Minimum("rhel"); !ok || min != "7.6" {
		t.Fatalf("expected rhel minimum 7.6, got %q %v", min, ok)
	}
	if ids := p.IDs(); strings.Join(ids, ",") != "centos,rhel" {
		t.Fatalf("ids not sorted: %v", ids)
	}
	if entries := p.Entries(); entries[0].ID != "rhel" {
		t.Fatalf("entries must keep declaration order: %+v", entries)
	}
	if _, err := New(Entry{ID: "rhel", Minimum: "7.6"}, Entry{ID: "RHEL", Minimum: "8"}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := New(Entry{ID: "rhel", Minimum: "seven"}); !errors.Is(err, ErrParse) {
		t.Fatalf("expected parse error for bad minimum, got %v", err)
	}
}

func TestLoaderReadsFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "supported:\n  - id: rhel\n    minimum: \"7.9\"\n  - id: almalinux\n    minimum: \"8.8\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := NewLoader().Load(context.Background(), Source{Kind: SourceFile, Path: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if min, _ := p.Minimum("almalinux"); min != "8.8" {
		t.Fatalf("unexpected almalinux minimum %q", min)
	}
}

func TestLoaderDefaultsToBuiltin(t *testing.T) {
	p, err := NewLoader().Load(context.Background(), Source{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if min, ok := p.Minimum("rhel"); !ok || min != "7.6" {
		t.Fatalf("expected builtin rhel 7.6, got %q", min)
	}
}

func TestLoaderRejectsUnknownSource(t *testing.T) {
	if _, err := NewLoader().Load(context.Background(), Source{Kind: "etcd"}); err == nil {
		t.Fatalf("expected unknown source error")
	}
}

type fakeKV struct {
	pairs map[string][]byte
	keys  []string
}

func (f *fakeKV) Get(key string, _ *consulapi.QueryOptions) (*consulapi.KVPair, *consulapi.QueryMeta, error) {
	f.keys = append(f.keys, key)
	value, ok := f.pairs[key]
	if !ok {
		return nil, &consulapi.QueryMeta{}, nil
	}
	return &consulapi.KVPair{Key: key, Value: value}, &consulapi.QueryMeta{}, nil
}

func TestLoaderReadsConsulKey(t *testing.T) {
	kv := &fakeKV{pairs: map[string][]byte{
		DefaultConsulKey: []byte("supported:\n  - id: rhel\n    minimum: \"7.8\"\n"),
	}}
	p, err := NewLoader().WithKV(kv).Load(context.Background(), Source{Kind: SourceConsul})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if min, _ := p.Minimum("rhel"); min != "7.8" {
		t.Fatalf("unexpected minimum %q", min)
	}
	if len(kv.keys) != 1 || kv.keys[0] != DefaultConsulKey {
		t.Fatalf("unexpected keys requested: %v", kv.keys)
	}
}

func TestLoaderReportsMissingConsulKey(t *testing.T) {
	kv := &fakeKV{pairs: map[string][]byte{}}
	_, err := NewLoader().WithKV(kv).Load(context.Background(), Source{Kind: SourceConsul, Key: "/custom/key/"})
	if err == nil || !strings.Contains(err.Error(), "custom/key not found") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
