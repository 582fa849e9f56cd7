package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/wordsync/internal/config"
	"github.com/kalambet/wordsync/internal/enrichment"
	"github.com/kalambet/wordsync/internal/notebook"
	"github.com/kalambet/wordsync/internal/syncer"
)

// --- init ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the deck and note type in Anki",
	Long: `Create the configured deck and note type in Anki if they are missing.

With --check nothing is created; each missing precondition is reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		checkOnly, _ := cmd.Flags().GetBool("check")

		a, err := loadApp(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Checking AnkiConnect at %s:%d", a.cfg.Anki.Host, a.cfg.Anki.Port)
		if err := a.boot.Run(cmd.Context(), a.cfg.Anki.Deck, a.cfg.Anki.NoteType, !checkOnly); err != nil {
			reportPrecondition(err)
			return err
		}
		printSuccess("Deck %q and note type %q are ready", a.cfg.Anki.Deck, a.cfg.Anki.NoteType)
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("check", false, "only verify, do not create anything")
}

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create Anki notes for captured words",
	Long: `Create Anki notes for captured words that have none yet.

Without --file the whole notebook is synced. Words already in Anki are
skipped, so running sync repeatedly is safe.

Examples:
  wordsync sync
  wordsync sync --file words.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		var words []notebook.Word
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			if words, err = parseWords(data); err != nil {
				return err
			}
		}

		a, err := loadApp(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.boot.Run(ctx, a.cfg.Anki.Deck, a.cfg.Anki.NoteType, a.cfg.Sync.Bootstrap); err != nil {
			reportPrecondition(err)
			return err
		}

		printStep("Syncing into deck %q", a.cfg.Anki.Deck)
		report, err := a.syncer.Sync(ctx, words, syncer.Options{ForceReload: file == ""})
		return printSyncResult(os.Stdout, report, err)
	},
}

func init() {
	syncCmd.Flags().String("file", "", "JSON file with an array of words to sync instead of the notebook")
}

// parseWords decodes a JSON array of words and rejects entries without text.
func parseWords(data []byte) ([]notebook.Word, error) {
	var words []notebook.Word
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("parsing words: %w", err)
	}
	for i, w := range words {
		if strings.TrimSpace(w.Text) == "" {
			return nil, fmt.Errorf("word %d: text is required", i)
		}
	}
	return words, nil
}

// printSyncResult writes the report and turns a partial failure into a
// per-word listing. The error is returned unchanged so the exit code reflects it.
func printSyncResult(w io.Writer, report syncer.Report, err error) error {
	var afe *syncer.AddFailedError
	switch {
	case err == nil:
		writeReport(w, report)
		printSuccess("Sync finished")
		return nil
	case errors.As(err, &afe):
		writeReport(w, report)
		for _, f := range afe.Failures {
			printError("%s: %v", f.Word.Text, f.Err)
		}
		return err
	default:
		return err
	}
}

// --- lookup ---

var lookupCmd = &cobra.Command{
	Use:   "lookup <word>",
	Short: "Show pronunciations and definitions for a word",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		word := strings.Join(args, " ")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		timeout, err := time.ParseDuration(cfg.Enrichment.Timeout)
		if err != nil {
			timeout = 10 * time.Second
		}
		client := enrichment.NewClientWithURL(cfg.Enrichment.BaseURL, enrichment.NewHTTPFetcher(timeout), nil)

		res, err := client.Lookup(cmd.Context(), word)
		if errors.Is(err, enrichment.ErrUnavailable) {
			return fmt.Errorf("no dictionary entry for %q", word)
		}
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		writeLookup(os.Stdout, res)
		return nil
	},
}

func init() {
	lookupCmd.Flags().Bool("json", false, "print the raw result as JSON")
}

func writeLookup(w io.Writer, res *enrichment.Result) {
	fmt.Fprintln(w, colorize(colorBold, res.Headword))
	for _, p := range res.Pronunciations {
		fmt.Fprintf(w, "  %s %s\n", p.Label, p.Phonetic)
	}
	sections := []struct {
		title string
		lines []string
	}{
		{"Definitions", res.Definitions},
		{"Web", res.WebDefinitions},
		{"Professional", res.ProfessionalDefinitions},
	}
	for _, s := range sections {
		if len(s.lines) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", colorize(colorCyan, s.title))
		for _, l := range s.lines {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
}

// --- words ---

var wordsCmd = &cobra.Command{
	Use:   "words",
	Short: "Manage the local notebook (requires a running server)",
}

var wordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently captured words",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/words?limit=%d", limit))
		if err != nil {
			return err
		}

		var words []notebook.Word
		if err := decodeJSON(resp, &words); err != nil {
			return err
		}
		if len(words) == 0 {
			fmt.Println("No words captured.")
			return nil
		}
		for _, w := range words {
			fmt.Println(formatWordLine(w))
		}
		return nil
	},
}

var wordsAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Capture a word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := notebook.Word{Text: args[0]}
		w.Context, _ = cmd.Flags().GetString("context")
		w.Translation, _ = cmd.Flags().GetString("trans")
		w.URL, _ = cmd.Flags().GetString("url")
		w.Note, _ = cmd.Flags().GetString("note")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/words", w)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Captured %q (%s)", w.Text, result["id"])
		return nil
	},
}

var wordsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a word from the notebook (the Anki note is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/words/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

func init() {
	wordsListCmd.Flags().Int("limit", 20, "maximum number of words to list")
	wordsAddCmd.Flags().String("context", "", "sentence the word was seen in")
	wordsAddCmd.Flags().String("trans", "", "translation of the context")
	wordsAddCmd.Flags().String("url", "", "source page")
	wordsAddCmd.Flags().String("note", "", "free-form note shown as the card hint")
	wordsCmd.AddCommand(wordsListCmd)
	wordsCmd.AddCommand(wordsAddCmd)
	wordsCmd.AddCommand(wordsDeleteCmd)
}

func formatWordLine(w notebook.Word) string {
	id := w.ID
	if len(id) > 8 {
		id = id[:8]
	}
	ctx := w.Context
	if len([]rune(ctx)) > 60 {
		ctx = string([]rune(ctx)[:60]) + "..."
	}
	date := time.UnixMilli(w.Date).Local().Format(time.DateTime)
	return fmt.Sprintf("%s  %s  %s  %s", colorize(colorCyan, id), date, colorize(colorBold, w.Text), ctx)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
