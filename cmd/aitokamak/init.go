package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tokamak-network/ai-tokamak/internal/config"
	"github.com/tokamak-network/ai-tokamak/internal/skills"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a working directory with a starter config and skills",
		Long: `Initialize an aitokamak working directory. Writes an annotated
config.yaml and copies the built-in skills into skills/. Existing files
are never overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd.OutOrStdout(), dir)
		},
	}
}

// runInit initializes a working directory with default files.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing aitokamak workspace in %s\n", dir)

	for _, sub := range []string{config.DefaultDataDir, config.DefaultSkillsDir} {
		p := filepath.Join(dir, sub)
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", p, err)
		}
	}

	// The config holds API keys, so it is private to the owner.
	configPath := filepath.Join(dir, "config.yaml")
	wrote, err := writeIfMissing(configPath, config.DefaultYAML, 0o600)
	if err != nil {
		return err
	}
	report(w, configPath, wrote)

	builtin := skills.Builtin()
	err = fs.WalkDir(builtin, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Base(p) != skills.SkillFile {
			return nil
		}
		content, err := fs.ReadFile(builtin, p)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", p, err)
		}

		dest := filepath.Join(dir, config.DefaultSkillsDir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}
		wrote, err := writeIfMissing(dest, content, 0o644)
		if err != nil {
			return err
		}
		report(w, dest, wrote)
		return nil
	})
	if err != nil {
		return fmt.Errorf("install skills: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Set a provider API key in config.yaml, then run: aitokamak serve")
	return nil
}

func report(w io.Writer, p string, wrote bool) {
	if wrote {
		fmt.Fprintf(w, "  ✓ %s\n", p)
	} else {
		fmt.Fprintf(w, "  - %s (exists, kept)\n", p)
	}
}

// writeIfMissing writes content to p only if the file does not already
// exist. It reports whether the file was written.
func writeIfMissing(p string, content []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(p); err == nil {
		return false, nil
	}
	if err := os.WriteFile(p, content, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", p, err)
	}
	return true, nil
}
