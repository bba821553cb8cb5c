// Package setup registers the LAI-PrEP MCP server with Claude Desktop.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
)

// ServerName is the key of the server entry in the desktop config.
const ServerName = "lai-prep-bridge"

// EnvDataDir is passed to the server so it uses the same data directory.
const EnvDataDir = "LAIPREP_DATA_DIR"

// BinaryName is the command-line binary the server entry launches.
const BinaryName = "laiprep"

// ServerEntry is one entry of the desktop config's mcpServers map.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// DesktopConfig is the part of claude_desktop_config.json this package edits.
// Every other top-level key is carried through unchanged.
type DesktopConfig struct {
	MCPServers map[string]ServerEntry
	other      map[string]json.RawMessage
}

// Options controls Install.
type Options struct {
	// ConfigPath overrides the desktop config location.
	ConfigPath string
	// BinaryPath is the laiprep binary; empty searches for it.
	BinaryPath string
	DataDir    string
	// History lets assess_patient save results.
	History bool
}

// DesktopConfigPath returns the path of Claude Desktop's config file.
func DesktopConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LoadDesktopConfig reads the desktop config. A missing file yields an empty config.
func LoadDesktopConfig(path string) (*DesktopConfig, error) {
	cfg := &DesktopConfig{
		MCPServers: make(map[string]ServerEntry),
		other:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		if cfg.MCPServers == nil {
			cfg.MCPServers = make(map[string]ServerEntry)
		}
		delete(cfg.other, "mcpServers")
	}
	return cfg, nil
}

// SaveDesktopConfig writes cfg to path, creating the directory if needed.
func SaveDesktopConfig(path string, cfg *DesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := make(map[string]any, len(cfg.other)+1)
	for k, v := range cfg.other {
		doc[k] = v
	}
	doc["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Install adds or replaces the server entry and returns the config path and
// the entry written.
func Install(opts Options) (string, ServerEntry, error) {
	path, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", ServerEntry{}, err
	}
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		return "", ServerEntry{}, err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = findBinary(); err != nil {
			return "", ServerEntry{}, fmt.Errorf("could not find %s binary: %w", BinaryName, err)
		}
	}

	entry := ServerEntry{Command: binary, Args: []string{"mcp"}}
	if opts.History {
		entry.Args = append(entry.Args, "--history")
	}
	if opts.DataDir != "" {
		entry.Env = map[string]string{EnvDataDir: opts.DataDir}
	}
	cfg.MCPServers[ServerName] = entry

	if err := SaveDesktopConfig(path, cfg); err != nil {
		return "", ServerEntry{}, err
	}
	return path, entry, nil
}

// Uninstall removes the server entry. It reports whether an entry was present.
func Uninstall(configPath string) (string, bool, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return "", false, err
	}
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		return "", false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return path, false, nil
	}
	delete(cfg.MCPServers, ServerName)
	if err := SaveDesktopConfig(path, cfg); err != nil {
		return "", false, err
	}
	return path, true, nil
}

// Status describes the current registration.
type Status struct {
	ConfigPath   string
	Configured   bool
	Entry        ServerEntry
	OtherServers []string
	Issues       []string
}

// GetStatus inspects the desktop config at configPath, or the default location.
func GetStatus(configPath string) (*Status, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: path}
	for name := range cfg.MCPServers {
		if name != ServerName {
			status.OtherServers = append(status.OtherServers, name)
		}
	}
	sort.Strings(status.OtherServers)

	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered")
		return status, nil
	}
	status.Configured = true
	status.Entry = entry

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case runtime.GOOS != "windows" && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	return status, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DesktopConfigPath()
}

// findBinary prefers the running executable, then PATH.
func findBinary() (string, error) {
	if exe, err := os.Executable(); err == nil && filepath.Base(exe) == BinaryName {
		return exe, nil
	}
	if path, err := exec.LookPath(BinaryName); err == nil {
		return filepath.Abs(path)
	}
	return "", fmt.Errorf("%s not found in PATH", BinaryName)
}
