package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nathoo/qicore/cli"
	"github.com/nathoo/qicore/engine"
	"github.com/nathoo/qicore/loader"
	"github.com/nathoo/qicore/tui"
)

func playCmd() *cobra.Command {
	var (
		plain      bool
		trace      bool
		scriptFile string
		templateID string
		name       string
	)
	cmd := &cobra.Command{
		Use:   "play [session-id]",
		Short: "Play a session in the terminal UI or a plain REPL",
		Long: "Play loads the session (creating it from a template if it does not exist yet) " +
			"and starts the terminal UI. --plain, --script or a non-terminal stdout select the plain REPL.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			id, err = ensureCharacter(cmd, a.kernel, id, templateID, name)
			if err != nil {
				return err
			}
			if _, err := a.kernel.Load(ctx, id); err != nil {
				return err
			}

			// Flush in the background while playing.
			go func() {
				if err := a.kernel.Run(ctx, cfg.FlushInterval); err != nil && ctx.Err() == nil {
					logrus.WithError(err).Error("flush loop stopped")
				}
			}()

			if scriptFile != "" {
				f, err := os.Open(scriptFile)
				if err != nil {
					return fmt.Errorf("opening script: %w", err)
				}
				defer f.Close()
				c := cli.New(a.kernel, id)
				c.In = f
				c.Out = cmd.OutOrStdout()
				c.EchoInput = true
				c.Trace = trace
				c.Run(ctx)
				return nil
			}
			if plain || !isTerminal() {
				c := cli.New(a.kernel, id)
				c.Out = cmd.OutOrStdout()
				c.Trace = trace
				c.Run(ctx)
				return nil
			}
			return tui.Run(ctx, a.kernel, id)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&plain, "plain", false, "use the plain line REPL")
	f.BoolVar(&trace, "trace", false, "print changes and visual commands after each command")
	f.StringVar(&scriptFile, "script", "", "read commands from a file (implies --plain)")
	f.StringVarP(&templateID, "template", "t", "", "character template for a new session")
	f.StringVarP(&name, "name", "n", "", "character name for a new session")
	return cmd
}

// ensureCharacter returns id, creating the character first when it does
// not exist. An empty id creates a new character with a random id.
func ensureCharacter(cmd *cobra.Command, k *engine.Kernel, id, templateID, name string) (string, error) {
	if id != "" {
		ids, err := k.Characters(cmd.Context())
		if err != nil {
			return "", err
		}
		if slices.Contains(ids, id) {
			return id, nil
		}
	} else {
		id = uuid.NewString()
	}
	if templateID == "" {
		templateID = defaultTemplate(k)
	}
	if _, err := k.NewCharacter(cmd.Context(), id, templateID, name); err != nil {
		return "", err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "created character %s\n", id)
	return id, nil
}

// defaultTemplate picks the first template id in sorted order.
func defaultTemplate(k *engine.Kernel) string {
	ids := make([]string, 0, len(k.Defs.Characters))
	for id := range k.Defs.Characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [session-id...]",
		Short: "Hold sessions loaded and flush them periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			ids := args
			if len(ids) == 0 {
				if ids, err = a.kernel.Characters(ctx); err != nil {
					return err
				}
			}
			for _, id := range ids {
				if _, err := a.kernel.Load(ctx, id); err != nil {
					return err
				}
			}
			logrus.WithFields(logrus.Fields{
				"sessions": len(ids),
				"interval": cfg.FlushInterval,
			}).Info("kernel running")

			err = a.kernel.Run(ctx, cfg.FlushInterval)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [content-dir]",
		Short: "Load and validate a content pack",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cfg.Content
			if len(args) == 1 {
				dir = args[0]
			}
			defs, warnings, err := loader.LoadWithWarnings(dir)
			out := cmd.OutOrStdout()
			for _, w := range warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d locations, %d techniques, %d items, %d creatures, %d characters, %d scenes\n",
				defs.World.Title, len(defs.Locations), len(defs.Techniques), len(defs.Items),
				len(defs.Creatures), len(defs.Characters), len(defs.Scenes))
			return nil
		},
	}
}

func newCmd() *cobra.Command {
	var templateID, name, id string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a character from a content template",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			if id == "" {
				id = uuid.NewString()
			}
			if templateID == "" {
				templateID = defaultTemplate(a.kernel)
			}
			ch, err := a.kernel.NewCharacter(cmd.Context(), id, templateID, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ch.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&templateID, "template", "t", "", "character template (default: first defined)")
	f.StringVarP(&name, "name", "n", "", "character name")
	f.StringVar(&id, "id", "", "character id (default: random UUID)")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [session-id]",
		Short: "List characters, or print one session's state as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				ids, err := a.kernel.Characters(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}
			s, err := a.kernel.Load(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
}

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <session-id> [events-file]",
		Short: "Apply newline-delimited JSON events to a session",
		Long: "Apply reads one wire event per line (from the file, or stdin when omitted), " +
			"processes each through the kernel and prints every result as a JSON line.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open()
			if err != nil {
				return err
			}
			defer a.close()

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			if _, err := a.kernel.Load(ctx, args[0]); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			scanner := bufio.NewScanner(in)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				if err := enc.Encode(a.kernel.Step(ctx, args[0], line)); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
