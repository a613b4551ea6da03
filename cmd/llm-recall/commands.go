package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/recall/internal/config"
	"github.com/thebtf/recall/internal/profile"
	"github.com/thebtf/recall/internal/shellcfg"
)

// newFragmentCmd resolves a fragment argument and prints the text.
// This is the host-tool integration point and must never fail the
// caller: it always exits 0 and prints at worst nothing.
func newFragmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fragment <argument>",
		Short: "Resolve a memory fragment for prompt injection",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			a := newApp()
			defer a.close()

			frag := a.loader.Resolve(args[0])
			if frag.Text != "" {
				fmt.Println(frag.Text)
			}
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the profile-update monitor in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			defer a.close()

			if a.cfg.Disabled || !a.cfg.UpdatesEnabled {
				return fmt.Errorf("profile updates are disabled (LLM_MEMORY_DISABLED / LLM_MEMORY_UPDATES)")
			}

			mon := a.loader.Monitor()
			mon.Start()
			fmt.Fprintf(os.Stderr, "watching for new interactions every %s (ctrl-c to stop)\n", a.cfg.UpdateInterval)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			mon.Stop()
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := profile.NewStore(config.ProfilePath())
			content, err := store.Load()
			if err != nil {
				return err
			}
			if profile.IsBlank(content) {
				fmt.Println("no profile yet")
				return nil
			}
			fmt.Print(content)
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Reset the profile to the default skeleton",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := profile.NewStore(config.ProfilePath())
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("profile cleared")
			return nil
		},
	}
}

// statusReport is the machine-readable status payload.
type statusReport struct {
	ProfilePath    string `json:"profile_path"`
	ProfileExists  bool   `json:"profile_exists"`
	ProfileBytes   int    `json:"profile_bytes"`
	ProfileTokens  int    `json:"profile_tokens"`
	LogStorePath   string `json:"log_store_path,omitempty"`
	LogStoreError  string `json:"log_store_error,omitempty"`
	Disabled       bool   `json:"disabled"`
	UpdatesEnabled bool   `json:"updates_enabled"`
	UpdateInterval string `json:"update_interval"`
	Model          string `json:"model,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report memory subsystem status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			defer a.close()

			report := statusReport{
				ProfilePath:    a.store.Path(),
				Disabled:       a.cfg.Disabled,
				UpdatesEnabled: a.cfg.UpdatesEnabled,
				UpdateInterval: a.cfg.UpdateInterval.String(),
				Model:          a.cfg.Model,
			}

			if content, err := a.store.Load(); err == nil && content != "" {
				report.ProfileExists = true
				report.ProfileBytes = len(content)
				report.ProfileTokens = countTokens(content)
			}

			ctx, cancel := context.WithTimeout(context.Background(), config.DefaultLocateTimeout+time.Second)
			defer cancel()
			if path, err := a.reader.Locate(ctx); err == nil {
				report.LogStorePath = path
			} else {
				report.LogStoreError = err.Error()
			}

			if jsonOutput {
				blob, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(blob))
				return nil
			}

			fmt.Printf("profile: %s\n", report.ProfilePath)
			if report.ProfileExists {
				fmt.Printf("  %d bytes, ~%d tokens\n", report.ProfileBytes, report.ProfileTokens)
			} else {
				fmt.Println("  (not created yet)")
			}
			if report.LogStorePath != "" {
				fmt.Printf("log store: %s\n", report.LogStorePath)
			} else {
				fmt.Printf("log store: unavailable (%s)\n", report.LogStoreError)
			}
			fmt.Printf("updates: %s, every %s\n", onOff(!report.Disabled && report.UpdatesEnabled), report.UpdateInterval)
			if report.Model != "" {
				fmt.Printf("model override: %s\n", report.Model)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the profile file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.ProfilePath())
		},
	}
}

func newInstallShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install-shell",
		Short: "Add the llm-memory alias to the shell startup file",
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := shellcfg.Detect()
			if err != nil {
				return err
			}
			installed, err := shellcfg.Installed(shell)
			if err != nil {
				return err
			}
			if installed {
				fmt.Printf("already installed in %s\n", shell.RCFile)
				return nil
			}
			if err := shellcfg.Install(shell); err != nil {
				return err
			}
			fmt.Printf("installed into %s (restart your shell to pick it up)\n", shell.RCFile)
			return nil
		},
	}
}

func newUninstallShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall-shell",
		Short: "Remove the llm-memory alias from the shell startup file",
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := shellcfg.Detect()
			if err != nil {
				return err
			}
			if err := shellcfg.Uninstall(shell); err != nil {
				return err
			}
			fmt.Printf("removed from %s\n", shell.RCFile)
			return nil
		},
	}
}

func newShellStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell-status",
		Short: "Report whether the shell alias is installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := shellcfg.Detect()
			if err != nil {
				return err
			}
			installed, err := shellcfg.Installed(shell)
			if err != nil {
				return err
			}
			fmt.Printf("shell: %s (%s)\n", shell.Name, shell.RCFile)
			fmt.Printf("alias: %s\n", installedWord(installed))
			return nil
		},
	}
}

func countTokens(s string) int {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return 0
	}
	ids, _, err := codec.Encode(s)
	if err != nil {
		return 0
	}
	return len(ids)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func installedWord(installed bool) string {
	if installed {
		return "installed"
	}
	return "not installed"
}
