package policy

import (
	"context"
	"fmt"
	"os"
	"strings"

	consulapi "github.com/hashicorp/consul/api"
)

// Source kinds accepted in project configuration.
const (
	SourceBuiltin = "builtin"
	SourceFile    = "file"
	SourceConsul  = "consul"
)

// DefaultConsulKey is read when a consul source leaves the key empty.
const DefaultConsulKey = "ipu-gate/policy/os-release"

// Source selects where the support table comes from.
type Source struct {
	Kind    string `yaml:"source"`
	Path    string `yaml:"path,omitempty"`
	Address string `yaml:"address,omitempty"`
	Key     string `yaml:"key,omitempty"`
}

// Normalized trims fields and fills defaults.
func (s Source) Normalized() Source {
	out := Source{
		Kind:    strings.ToLower(strings.TrimSpace(s.Kind)),
		Path:    strings.TrimSpace(s.Path),
		Address: strings.TrimSpace(s.Address),
		Key:     strings.Trim(strings.TrimSpace(s.Key), "/"),
	}
	if out.Kind == "" {
		out.Kind = SourceBuiltin
	}
	if out.Kind == SourceConsul && out.Key == "" {
		out.Key = DefaultConsulKey
	}
	return out
}

// Validate checks that the fields required by the kind are present.
func (s Source) Validate() error {
	n := s.Normalized()
	switch n.Kind {
	case SourceBuiltin:
		return nil
	case SourceFile:
		if n.Path == "" {
			return fmt.Errorf("policy: path is required for file sources")
		}
		return nil
	case SourceConsul:
		return nil
	default:
		return fmt.Errorf("policy: source must be 'builtin', 'file', or 'consul'")
	}
}

// KVReader is the subset of the consul KV client the loader uses.
type KVReader interface {
	Get(key string, q *consulapi.QueryOptions) (*consulapi.KVPair, *consulapi.QueryMeta, error)
}

// Loader resolves a Source into a SupportPolicy.
type Loader struct {
	kv func(address string) (KVReader, error)
}

// NewLoader returns a loader that dials consul with the official client.
func NewLoader() *Loader {
	return &Loader{kv: dialConsul}
}

// WithKV swaps the consul client, mainly for tests.
func (l *Loader) WithKV(kv KVReader) *Loader {
	clone := *l
	clone.kv = func(string) (KVReader, error) { return kv, nil }
	return &clone
}

// Load reads the policy described by src.
func (l *Loader) Load(ctx context.Context, src Source) (*SupportPolicy, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	n := src.Normalized()
	switch n.Kind {
	case SourceFile:
		data, err := os.ReadFile(n.Path)
		if err != nil {
			return nil, fmt.Errorf("policy: read %s: %w", n.Path, err)
		}
		p, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("policy: %s: %w", n.Path, err)
		}
		return p, nil
	case SourceConsul:
		return l.loadConsul(ctx, n)
	default:
		return Default(), nil
	}
}

func (l *Loader) loadConsul(ctx context.Context, src Source) (*SupportPolicy, error) {
	dial := l.kv
	if dial == nil {
		dial = dialConsul
	}
	kv, err := dial(src.Address)
	if err != nil {
		return nil, err
	}
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	pair, _, err := kv.Get(src.Key, opts)
	if err != nil {
		return nil, fmt.Errorf("policy: consul get %s: %w", src.Key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("policy: consul key %s not found", src.Key)
	}
	p, err := ParseYAML(pair.Value)
	if err != nil {
		return nil, fmt.Errorf("policy: consul key %s: %w", src.Key, err)
	}
	return p, nil
}

func dialConsul(address string) (KVReader, error) {
	cfg := consulapi.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("policy: consul client: %w", err)
	}
	return cli.KV(), nil
}
