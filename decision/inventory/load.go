package inventory

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	perrors "migration-cost/pkg/errors"
)

// document is the wrapped file form: {"vms": [...]}.
type document struct {
	VMs []VM `json:"vms" yaml:"vms"`
}

// LoadFile reads a JSON or YAML inventory, chosen by extension.
func LoadFile(path string) ([]VM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	case ".json":
		return DecodeJSON(data)
	default:
		return nil, perrors.NewConfigurationError(fmt.Sprintf("unsupported inventory format %q", filepath.Ext(path)))
	}
}

// DecodeJSON accepts either a bare array of VMs or a {"vms": [...]} object.
func DecodeJSON(data []byte) ([]VM, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var vms []VM
		if err := json.Unmarshal(trimmed, &vms); err != nil {
			return nil, perrors.NewParseError("invalid inventory JSON", err)
		}
		return vms, nil
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, perrors.NewParseError("invalid inventory JSON", err)
	}
	return doc.VMs, nil
}

// DecodeYAML accepts either a sequence of VMs or a mapping with a vms key.
func DecodeYAML(data []byte) ([]VM, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, perrors.NewParseError("invalid inventory YAML", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var vms []VM
		if err := root.Decode(&vms); err != nil {
			return nil, perrors.NewParseError("invalid inventory YAML", err)
		}
		return vms, nil
	}

	var doc document
	if err := root.Decode(&doc); err != nil {
		return nil, perrors.NewParseError("invalid inventory YAML", err)
	}
	return doc.VMs, nil
}
