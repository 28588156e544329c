package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/contentbuddy/contentbuddy/internal/api"
	"github.com/contentbuddy/contentbuddy/internal/dictionary"
)

func newDictCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Inspect and edit the pronunciation dictionary",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print every dictionary entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := a.client.Dictionary(cmd.Context())
			if err != nil {
				return err
			}
			for _, it := range items {
				a.printf("%s\t%s\n", it.Text, it.Pronunciation)
			}
			return nil
		},
	}

	check := &cobra.Command{
		Use:   "check <word>",
		Short: "Look up a word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, ok, err := a.client.CheckWord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				a.printf("%s: not in dictionary\n", args[0])
				return nil
			}
			a.printf("%s\t%s\trow %d\n", entry.Word, entry.Pinyin, entry.RowIndex)
			return nil
		},
	}

	var row int
	save := &cobra.Command{
		Use:   "save <word> <pinyin> | save <word=pinyin>...",
		Short: "Add or update entries",
		Long: `Add or update entries. With two plain arguments a single word is saved,
optionally at --row. With word=pinyin pairs the entries are saved as one batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 && !strings.Contains(args[0], "=") {
				return a.client.SaveWord(cmd.Context(), dictionary.Entry{Word: args[0], Pinyin: args[1], RowIndex: row})
			}
			entries := make([]api.SaveEntry, 0, len(args))
			for _, arg := range args {
				word, pinyin, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected word=pinyin, got %q", arg)
				}
				entries = append(entries, api.SaveEntry{Word: word, Pinyin: pinyin})
			}
			if err := a.client.SaveWords(cmd.Context(), entries); err != nil {
				return err
			}
			a.printf("saved %d entries\n", len(entries))
			return nil
		},
	}
	save.Flags().IntVar(&row, "row", 0, "Row to overwrite (from `dict check`)")

	var store bool
	pinyin := &cobra.Command{
		Use:   "pinyin <word>",
		Short: "Ask the model for a word's tone-numbered pinyin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			py, err := a.client.GeneratePinyin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.printf("%s\t%s\n", args[0], py)
			if store {
				return a.client.SaveWord(cmd.Context(), dictionary.Entry{Word: args[0], Pinyin: py})
			}
			return nil
		},
	}
	pinyin.Flags().BoolVar(&store, "save", false, "Save the generated pinyin")

	cmd.AddCommand(list, check, save, pinyin)
	return cmd
}
