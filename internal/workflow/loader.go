package workflow

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed workflows/*.yaml
var bundled embed.FS

// DefaultWorkflowID names the bundled in-place upgrade workflow.
const DefaultWorkflowID = "ipu"

// ParseDefinitionYAML decodes a workflow definition from YAML/JSON bytes.
func ParseDefinitionYAML(data []byte) (WorkflowDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return WorkflowDefinition{}, fmt.Errorf("workflow: definition payload is empty")
	}
	var def WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return WorkflowDefinition{}, fmt.Errorf("workflow: decode definition: %w", err)
	}
	return def.Normalized()
}

// LoadDefinitionReader reads workflow definition data from an io.Reader.
func LoadDefinitionReader(r io.Reader) (WorkflowDefinition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return WorkflowDefinition{}, fmt.Errorf("workflow: read definition: %w", err)
	}
	return ParseDefinitionYAML(content)
}

// LoadDefinitionFile loads a workflow definition from an explicit file path.
func LoadDefinitionFile(path string) (WorkflowDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return WorkflowDefinition{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	def, parseErr := ParseDefinitionYAML(content)
	if parseErr != nil {
		return WorkflowDefinition{}, fmt.Errorf("workflow: %s: %w", path, parseErr)
	}
	return def, nil
}

// Bundled loads a workflow shipped inside the binary by id.
func Bundled(id string) (WorkflowDefinition, error) {
	name := path.Join("workflows", strings.TrimSpace(id)+".yaml")
	content, err := bundled.ReadFile(name)
	if err != nil {
		return WorkflowDefinition{}, fmt.Errorf("workflow: no bundled workflow %q", id)
	}
	return ParseDefinitionYAML(content)
}

// BundledIDs lists the bundled workflow identifiers.
func BundledIDs() []string {
	entries, err := fs.ReadDir(bundled, "workflows")
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(ids)
	return ids
}

// Load resolves ref as a file path when it names an existing file, and as a
// bundled workflow id otherwise.
func Load(ref string) (WorkflowDefinition, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = DefaultWorkflowID
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return LoadDefinitionFile(ref)
	}
	return Bundled(ref)
}
