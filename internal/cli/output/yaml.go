package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// PrintYAML writes data as YAML using its yaml struct tags.
func PrintYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(data)
}

// PrintWireYAML writes data as YAML with the field names and order of its
// JSON encoding, so API types print the same keys in both formats.
func PrintWireYAML(w io.Writer, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}
	// JSON is valid YAML; decoding into a node keeps key order
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to convert to YAML: %w", err)
	}
	blockStyle(&doc)
	return PrintYAML(w, &doc)
}

// blockStyle drops the flow and quoting styles the JSON input carries.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
