package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/ipu-gate/internal/actor"
	"github.com/kingrea/ipu-gate/internal/actors"
	"github.com/kingrea/ipu-gate/internal/config"
	"github.com/kingrea/ipu-gate/internal/logging"
	"github.com/kingrea/ipu-gate/internal/message"
	"github.com/kingrea/ipu-gate/internal/policy"
)

func main() {
	actorName := flag.String("actor", "", "actor name to execute (e.g. check_os_release)")
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	factsFile := flag.String("facts", "", "YAML/JSON file with messages to seed the bus with")
	sets := keyValueFlag{}
	flag.Var(&sets, "set", "actor config override (key=value, repeatable)")
	flag.Parse()

	name := strings.TrimSpace(*actorName)
	if name == "" && flag.NArg() > 0 {
		name = strings.TrimSpace(flag.Arg(0))
	}
	if name == "" {
		die("--actor is required")
	}

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.InitDir(absoluteProject); err != nil {
		die("init %s: %v", config.Dir, err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}
	ctx := context.Background()
	pol, err := policy.NewLoader().Load(ctx, cfg.Project.Policy)
	if err != nil {
		die("load policy: %v", err)
	}
	reg, err := actors.NewRegistry(actors.Deps{Policy: pol, PluginDir: cfg.ActorsDir()})
	if err != nil {
		die("register actors: %v", err)
	}
	a, err := reg.Resolve(name, sets.config())
	if err != nil {
		die("resolve actor: %v (known: %s)", err, strings.Join(reg.Names(), ", "))
	}

	bus := message.NewBus()
	if path := strings.TrimSpace(*factsFile); path != "" {
		seeded, err := readFactsFile(path)
		if err != nil {
			die("load facts: %v", err)
		}
		bus.Seed(seeded...)
	}
	logger := logging.NewWriter(os.Stderr)
	actx := actor.NewContext(ctx, cfg, bus, logger).ForActor(a, "actor-runner")
	if err := a.Process(actx); err != nil {
		die("run actor: %v", err)
	}
	if err := writeMessages(os.Stdout, actx.Produced()); err != nil {
		die("print messages: %v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

func (kv keyValueFlag) config() actor.Config {
	if len(kv) == 0 {
		return nil
	}
	cfg := make(actor.Config, len(kv))
	for key, value := range kv {
		cfg[key] = value
	}
	return cfg
}

// factsDocument is the on-disk shape of a facts file:
//
//	messages:
//	  - kind: OSReleaseFacts
//	    payload: {release_id: rhel, version_id: "7.9"}
type factsDocument struct {
	Messages []factsEntry `yaml:"messages"`
}

type factsEntry struct {
	Kind    message.Kind `yaml:"kind"`
	Actor   string       `yaml:"actor"`
	Payload yaml.Node    `yaml:"payload"`
}

func readFactsFile(path string) ([]message.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facts file %s: %w", path, err)
	}
	return parseFacts(data)
}

// parseFacts accepts YAML or JSON (a YAML subset) and decodes every payload
// through the registered message schema.
func parseFacts(data []byte) ([]message.Envelope, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("facts file is empty")
	}
	var doc factsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse facts: %w", err)
	}
	out := make([]message.Envelope, 0, len(doc.Messages))
	for i, entry := range doc.Messages {
		payload, err := message.DecodeYAMLPayload(entry.Kind, &entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("facts entry %d: %w", i, err)
		}
		actorName := entry.Actor
		if actorName == "" {
			actorName = "facts-file"
		}
		out = append(out, message.Envelope{Kind: entry.Kind, Actor: actorName, Payload: payload})
	}
	return out, nil
}

type printedMessage struct {
	Seq     int           `yaml:"seq"`
	Kind    message.Kind  `yaml:"kind"`
	Actor   string        `yaml:"actor"`
	Payload message.Model `yaml:"payload"`
}

func writeMessages(w io.Writer, envelopes []message.Envelope) error {
	printed := make([]printedMessage, 0, len(envelopes))
	for _, env := range envelopes {
		printed = append(printed, printedMessage{Seq: env.Seq, Kind: env.Kind, Actor: env.Actor, Payload: env.Payload})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"produced": printed}); err != nil {
		return err
	}
	return enc.Close()
}
