// Package delivery locates deliveries and parses their compiled test
// definitions and item metadata documents.
package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"resultexport/internal/qti"
)

// Delivery is one configured, assignable instance of a test definition.
// Immutable for the duration of an export run.
type Delivery struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Dir   string `json:"dir,omitempty"` // storage directory, defaults to the manifest's directory
}

// ManifestName is the per-delivery manifest file a Registry scans for.
const ManifestName = "delivery.json"

// Registry locates deliveries by their manifests under a root directory,
// one subdirectory per delivery.
type Registry struct {
	root string
}

func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// All returns every delivery found under the registry root, sorted by ID so
// repeated runs see a stable order.
func (r *Registry) All() ([]Delivery, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("reading deliveries root %s: %w", r.root, err)
	}

	var deliveries []Delivery
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.root, entry.Name())
		manifest := filepath.Join(dir, ManifestName)
		data, err := os.ReadFile(manifest)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", manifest, err)
		}

		var d Delivery
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", manifest, err)
		}
		if d.ID == "" {
			d.ID = entry.Name()
		}
		if d.Label == "" {
			d.Label = d.ID
		}
		if d.Dir == "" {
			d.Dir = dir
		} else if !filepath.IsAbs(d.Dir) {
			d.Dir = filepath.Join(dir, d.Dir)
		}
		deliveries = append(deliveries, d)
	}

	sort.Slice(deliveries, func(i, j int) bool { return deliveries[i].ID < deliveries[j].ID })
	return deliveries, nil
}

// ByID resolves an explicit delivery list. Unknown IDs are an error.
func (r *Registry) ByID(ids ...string) ([]Delivery, error) {
	all, err := r.All()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Delivery, len(all))
	for _, d := range all {
		byID[d.ID] = d
	}

	deliveries := make([]Delivery, 0, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown delivery %q", id)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

// TestDefinitionName is the compiled test definition inside a delivery
// storage directory.
const TestDefinitionName = "compact-test.json"

// ItemDocumentName is the per-item metadata document.
const ItemDocumentName = "item.json"

// searchDepth bounds how deep definition files are searched below a storage
// directory.
const searchDepth = 3

// Declaration is one response or outcome variable declared by an item ref.
type Declaration struct {
	Identifier  string `json:"identifier"`
	Cardinality string `json:"cardinality,omitempty"`
	BaseType    string `json:"baseType,omitempty"`
}

// ItemRef references one item from the compiled test definition.
type ItemRef struct {
	Identifier string        `json:"identifier"`
	Href       string        `json:"href"`
	Responses  []Declaration `json:"responseDeclarations"`
	Outcomes   []Declaration `json:"outcomeDeclarations"`
}

// PrivateDir extracts the item metadata directory from the href, which is
// serialized as "itemURI|publicDir|privateDir".
func (ref ItemRef) PrivateDir() (string, error) {
	parts := strings.Split(ref.Href, "|")
	if len(parts) < 3 || parts[2] == "" {
		return "", fmt.Errorf("item ref %q: href %q has no private directory", ref.Identifier, ref.Href)
	}
	return parts[2], nil
}

// TestDefinition is the compiled assessment test of one delivery.
type TestDefinition struct {
	Identifier string    `json:"identifier"`
	ItemRefs   []ItemRef `json:"assessmentItemRefs"`
}

// LoadTestDefinition locates and parses the single compiled test definition
// below a delivery storage directory.
func LoadTestDefinition(reader DirectoryReader, dir string) (*TestDefinition, error) {
	data, err := readNamed(reader, dir, TestDefinitionName)
	if err != nil {
		return nil, err
	}
	var td TestDefinition
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("parsing %s in %s: %w", TestDefinitionName, dir, err)
	}
	return &td, nil
}

// ItemDocument is a parsed item metadata document.
type ItemDocument struct {
	Data *qti.Node `json:"data"`
}

// Attributes returns the item-level attributes, tolerating a missing tree.
func (doc *ItemDocument) Attributes() qti.Attributes {
	if doc == nil || doc.Data == nil {
		return qti.Attributes{}
	}
	return doc.Data.Attributes
}

// LoadItemDocument locates and parses the item metadata document below an
// item's private directory.
func LoadItemDocument(reader DirectoryReader, dir string) (*ItemDocument, error) {
	data, err := readNamed(reader, dir, ItemDocumentName)
	if err != nil {
		return nil, err
	}
	var doc ItemDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s in %s: %w", ItemDocumentName, dir, err)
	}
	return &doc, nil
}

func readNamed(reader DirectoryReader, dir, name string) ([]byte, error) {
	files, err := reader.ListFiles(dir, searchDepth)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name == name {
			return reader.Read(f)
		}
	}
	return nil, fmt.Errorf("no %s found under %s", name, dir)
}
