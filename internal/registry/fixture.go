package registry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadTreeFromFile reads a criteria tree from a JSON or YAML fixture. Used
// by dev setups that run without a Notion token.
func LoadTreeFromFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read tree fixture")
	}

	var tree Tree
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &tree)
	default:
		err = json.Unmarshal(data, &tree)
	}
	if err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal tree fixture")
	}
	return &tree, nil
}
