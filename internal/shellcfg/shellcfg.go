// Package shellcfg installs the recall helper block into shell startup files.
//
// The block is delimited by unique marker lines so install is
// idempotent and uninstall removes exactly what install added,
// independent of shell dialect.
package shellcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Marker lines owned by recall. Everything between them is managed.
const (
	MarkerBegin = "# >>> llm-recall >>>"
	MarkerEnd   = "# <<< llm-recall <<<"
)

// Shell is a recognized shell family.
type Shell struct {
	Name   string // "bash", "zsh", "fish"
	RCFile string // absolute path to the startup file
}

// Detect identifies the user's shell from the SHELL environment
// variable. Unknown or unset shells return an error; recall only
// knows how to patch the three common families.
func Detect() (Shell, error) {
	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		return Shell{}, fmt.Errorf("SHELL is not set")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Shell{}, fmt.Errorf("resolve home dir: %w", err)
	}

	switch filepath.Base(shellPath) {
	case "bash":
		return Shell{Name: "bash", RCFile: filepath.Join(home, ".bashrc")}, nil
	case "zsh":
		return Shell{Name: "zsh", RCFile: filepath.Join(home, ".zshrc")}, nil
	case "fish":
		return Shell{Name: "fish", RCFile: filepath.Join(home, ".config", "fish", "config.fish")}, nil
	default:
		return Shell{}, fmt.Errorf("unsupported shell %q", shellPath)
	}
}

// block returns the managed snippet for a shell family.
func block(shell Shell) string {
	var alias string
	if shell.Name == "fish" {
		alias = `alias llm-memory 'llm -f memory:auto'`
	} else {
		alias = `alias llm-memory='llm -f memory:auto'`
	}
	return MarkerBegin + "\n" +
		"# Managed by llm-recall. Run 'llm-recall uninstall-shell' to remove.\n" +
		alias + "\n" +
		MarkerEnd + "\n"
}

// Installed reports whether the managed block is present in the rc file.
func Installed(shell Shell) (bool, error) {
	data, err := os.ReadFile(shell.RCFile)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.Contains(string(data), MarkerBegin), nil
}

// Install appends the managed block to the shell's startup file.
// A file already containing the block is left untouched. The original
// file is backed up alongside before modification.
func Install(shell Shell) error {
	data, err := os.ReadFile(shell.RCFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", shell.RCFile, err)
	}

	content := string(data)
	if strings.Contains(content, MarkerBegin) {
		return nil
	}

	if len(data) > 0 {
		if err := backup(shell.RCFile, data); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(shell.RCFile), 0o750); err != nil {
		return fmt.Errorf("create rc dir: %w", err)
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "\n" + block(shell)

	return writeAtomic(shell.RCFile, []byte(content))
}

// Uninstall removes the marker-delimited span from the startup file.
// A file without the block is a no-op.
func Uninstall(shell Shell) error {
	data, err := os.ReadFile(shell.RCFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", shell.RCFile, err)
	}

	content := string(data)
	if !strings.Contains(content, MarkerBegin) {
		return nil
	}

	if err := backup(shell.RCFile, data); err != nil {
		return err
	}

	return writeAtomic(shell.RCFile, []byte(removeBlock(content)))
}

// removeBlock strips every marker-delimited span, line-based so stray
// whitespace around markers doesn't defeat removal.
func removeBlock(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == MarkerBegin {
			inBlock = true
			// Drop a single blank separator line Install added.
			if n := len(out); n > 0 && strings.TrimSpace(out[n-1]) == "" {
				out = out[:n-1]
			}
			continue
		}
		if trimmed == MarkerEnd {
			inBlock = false
			continue
		}
		if !inBlock {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func backup(path string, data []byte) error {
	if err := os.WriteFile(path+".bak", data, 0o600); err != nil {
		return fmt.Errorf("back up %s: %w", path, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
