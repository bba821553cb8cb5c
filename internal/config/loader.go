// Package config loads and validates the LAI-PrEP risk model configuration and
// the runtime settings of the command-line and MCP collaborators.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lai-prep-bridge/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file name looked up by Find.
const DefaultFileName = "lai_prep_config.json"

// DefaultSearchPaths are consulted in order when no configuration path is given.
var DefaultSearchPaths = []string{
	DefaultFileName,
	filepath.Join("config", DefaultFileName),
	filepath.Join("configs", DefaultFileName),
}

// Format is the encoding of a configuration document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the document format from the file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Find returns the first existing file among searchPaths, or among
// DefaultSearchPaths when none are given.
func Find(searchPaths ...string) (string, error) {
	if len(searchPaths) == 0 {
		searchPaths = DefaultSearchPaths
	}
	for _, p := range searchPaths {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", domain.NewConfigurationError(
		domain.ErrConfigNotFound,
		fmt.Sprintf("configuration file not found, searched: %s", strings.Join(searchPaths, ", ")),
		nil,
	)
}

// Load reads the configuration at path. An empty path triggers Find over the
// default locations. The document is checked against the embedded schema,
// decoded, and then checked for dangling cross-references and badly tiled
// risk bands. Every failure is a *domain.ConfigurationError.
func Load(path string) (*domain.Configuration, error) {
	if path == "" {
		found, err := Find()
		if err != nil {
			return nil, err
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		msg := fmt.Sprintf("cannot read configuration file %s", path)
		if errors.Is(err, fs.ErrNotExist) {
			msg = fmt.Sprintf("configuration file not found: %s", path)
		}
		return nil, domain.NewConfigurationError(domain.ErrConfigNotFound, msg, err)
	}

	cfg, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, nil
}

// Parse decodes and validates a configuration document held in memory.
func Parse(data []byte, format Format) (*domain.Configuration, error) {
	doc, err := normalize(data, format)
	if err != nil {
		return nil, err
	}

	if err := checkSections(doc); err != nil {
		return nil, err
	}

	if errs := schemaErrors(doc); len(errs) > 0 {
		return nil, domain.NewConfigurationError(
			domain.ErrInvalidConfig,
			"configuration does not match schema: "+strings.Join(errs, "; "),
			nil,
		)
	}

	var cfg domain.Configuration
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, domain.NewConfigurationError(domain.ErrMalformedConfig, "cannot decode configuration", err)
	}

	if issues := semanticIssues(&cfg); len(issues) > 0 {
		return nil, issues[0]
	}
	return &cfg, nil
}

// normalize returns the document as JSON. YAML is converted node by node so
// mapping keys keep their document order.
func normalize(data []byte, format Format) ([]byte, error) {
	if format == FormatJSON {
		if !json.Valid(data) {
			var probe any
			err := json.Unmarshal(data, &probe)
			return nil, domain.NewConfigurationError(domain.ErrMalformedConfig, "invalid JSON in configuration", err)
		}
		return data, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, domain.NewConfigurationError(domain.ErrMalformedConfig, "invalid YAML in configuration", err)
	}
	var buf bytes.Buffer
	if err := writeNodeJSON(&buf, &root); err != nil {
		return nil, domain.NewConfigurationError(domain.ErrMalformedConfig, "cannot convert YAML configuration", err)
	}
	return buf.Bytes(), nil
}

const (
	mergeTag     = "!!merge"
	timestampTag = "!!timestamp"
)

func writeNodeJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNodeJSON(buf, n.Content[0])
	case yaml.AliasNode:
		return writeNodeJSON(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].ShortTag() == mergeTag {
				return fmt.Errorf("line %d: merge keys (<<) are not supported", n.Content[i].Line)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNodeJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNodeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		// dates such as 2025-01-15 stay as written
		if n.ShortTag() == timestampTag {
			out, err := json.Marshal(n.Value)
			if err != nil {
				return err
			}
			buf.Write(out)
			return nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return err
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(out)
	default:
		return fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
	return nil
}

// checkSections reports the first required top-level section that is absent.
func checkSections(doc []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return domain.NewConfigurationError(domain.ErrMalformedConfig, "configuration must be a JSON object", err)
	}
	for _, section := range domain.RequiredSections {
		if _, ok := top[section]; !ok {
			ce := domain.NewConfigurationError(
				domain.ErrMissingSection,
				fmt.Sprintf("missing required section: %s", section),
				nil,
			)
			ce.Section = section
			return ce
		}
	}
	return nil
}
