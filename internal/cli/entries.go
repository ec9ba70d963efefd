package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	JSON          string
	Language      string
	PartOfSpeech  string
	Definition    string
	Examples      []string
	Translations  []string
	Category      string
	Pronunciation string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create [headword]",
		Short: "Create a dictionary entry",
		Long: `Create a dictionary entry.

Either describe a single meaning with flags or pass a full draft as JSON.

Example:
  lexicon create sawubona --language zu --pos interjection --definition hello --translation en:hello
  lexicon create --json '{"headword":"amanzi","language_id":"zu","meanings":[...]}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := opts.draft(args)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid entry", err)
			}
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				if draft.CategoryID != nil {
					category, err := app.Categories.Ensure(ctx, *draft.CategoryID)
					if err != nil {
						return WrapExitError(ExitCommandError, "invalid category", err)
					}
					draft.CategoryID = &category.ID
				}
				entry, err := app.Engine.CreateEntry(ctx, actor, draft)
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(entry, func(w io.Writer) { writeEntry(w, *entry) })
			})
		},
	}

	cmd.Flags().StringVar(&opts.JSON, "json", "", "entry draft as JSON")
	cmd.Flags().StringVar(&opts.Language, "language", "", "language code")
	cmd.Flags().StringVar(&opts.PartOfSpeech, "pos", "", "part of speech")
	cmd.Flags().StringVar(&opts.Definition, "definition", "", "definition text")
	cmd.Flags().StringArrayVar(&opts.Examples, "example", nil, "usage example (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Translations, "translation", nil, "translation as lang:text (repeatable)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category name, created if new")
	cmd.Flags().StringVar(&opts.Pronunciation, "pronunciation", "", "pronunciation")

	return cmd
}

func (o *CreateOptions) draft(args []string) (models.EntryDraft, error) {
	var draft models.EntryDraft
	if o.JSON != "" {
		if err := json.Unmarshal([]byte(o.JSON), &draft); err != nil {
			return draft, fmt.Errorf("invalid --json: %w", err)
		}
		if len(args) == 1 {
			draft.Headword = args[0]
		}
		return draft, nil
	}
	if len(args) == 0 {
		return draft, fmt.Errorf("headword is required")
	}

	translations, err := parseTranslationFlags(o.Translations)
	if err != nil {
		return draft, err
	}
	draft = models.EntryDraft{
		Headword:      args[0],
		LanguageID:    o.Language,
		Translations:  translations,
		Pronunciation: o.Pronunciation,
	}
	if o.Definition != "" {
		draft.Meanings = models.Meanings{{
			PartOfSpeech: o.PartOfSpeech,
			Definitions:  []models.Definition{{Text: o.Definition, Examples: o.Examples}},
		}}
	}
	if o.Category != "" {
		category := o.Category
		draft.CategoryID = &category
	}
	return draft, nil
}

func parseTranslationFlags(values []string) (models.Translations, error) {
	var out models.Translations
	for _, v := range values {
		lang, text, ok := strings.Cut(v, ":")
		if !ok || strings.TrimSpace(lang) == "" || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("invalid translation %q: want lang:text", v)
		}
		out = append(out, models.Translation{LanguageID: strings.TrimSpace(lang), Text: strings.TrimSpace(text)})
	}
	return out, nil
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show an entry visible to the actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				entry, err := app.Engine.GetEntry(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(entry, func(w io.Writer) { writeEntry(w, *entry) })
			})
		},
	}
}

// NewEditCommand creates the edit command.
func NewEditCommand(opts *RootOptions) *cobra.Command {
	var patchJSON string

	cmd := &cobra.Command{
		Use:   "edit <entry-id>",
		Short: "Edit an entry or propose a revision",
		Long: `Edit an entry. Owners and moderators change the entry directly;
other users create a revision that waits for review.

Example:
  lexicon edit 3f2c... --actor user-1 --patch '{"pronunciation":"sa-wu-bo-na"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.EntryPatch
			if err := json.Unmarshal([]byte(patchJSON), &patch); err != nil {
				return WrapExitError(ExitCommandError, "invalid --patch", err)
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				res, err := app.Engine.SubmitEdit(ctx, args[0], patch, actor)
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(res, func(w io.Writer) {
					if res.Revision != nil {
						fmt.Fprintf(w, "Revision %s submitted for review (%s)\n", res.Revision.ID, moderation.RevisionPriority(res.Revision.Changes))
						return
					}
					writeEntry(w, res.Entry)
				})
			})
		},
	}

	cmd.Flags().StringVar(&patchJSON, "patch", "{}", "fields to change as JSON")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				if err := app.Engine.DeleteEntry(ctx, actor, args[0]); err != nil {
					return err
				}
				return opts.printer(cmd).print(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Entry %s deleted\n", args[0])
				})
			})
		},
	}
}

// NewModerateCommand creates the moderate command.
func NewModerateCommand(opts *RootOptions) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:       "moderate <entry-id> <approve|reject>",
		Short:     "Approve or reject a new entry",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(moderation.VerdictApprove), string(moderation.VerdictReject)},
		RunE: func(cmd *cobra.Command, args []string) error {
			verdict := moderation.Verdict(args[1])
			if verdict != moderation.VerdictApprove && verdict != moderation.VerdictReject {
				return WrapExitError(ExitCommandError, "invalid verdict", fmt.Errorf("%q is not approve or reject", args[1]))
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				entry, err := app.Engine.ModerateEntry(ctx, actor, args[0], verdict, notes)
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(entry, func(w io.Writer) { writeEntry(w, *entry) })
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "moderation notes, required when rejecting")
	return cmd
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <entry-id>",
		Short: "Return a rejected entry to the moderation queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				entry, err := app.Engine.RestoreEntry(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(entry, func(w io.Writer) { writeEntry(w, *entry) })
			})
		},
	}
}

// NewPermissionCommand creates the permission command.
func NewPermissionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "permission <entry-id> <view|edit|delete|moderate|revise>",
		Short: "Explain whether the actor may perform an action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := moderation.Action(args[1])
			if !action.Valid() {
				return WrapExitError(ExitCommandError, "invalid action", fmt.Errorf("unknown action %q", args[1]))
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				d, err := app.Engine.DecidePermission(ctx, actor, args[0], action)
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(d, func(w io.Writer) {
					verdict := "denied"
					if d.Allowed {
						verdict = "allowed"
					}
					fmt.Fprintf(w, "%s: %s (%s)\n", action, verdict, d.Reason)
					for _, r := range d.Restrictions {
						fmt.Fprintf(w, "  - %s\n", r)
					}
				})
			})
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <entry-id>",
		Short: "List the revisions and activity of an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				revisions, err := app.Engine.ListEntryRevisions(ctx, actor, args[0])
				if err != nil {
					return err
				}
				events, err := app.Activity.ListByTarget(ctx, args[0])
				if err != nil {
					return err
				}
				out := struct {
					Revisions []models.Revision      `json:"revisions"`
					Activity  []models.ActivityEvent `json:"activity"`
				}{revisions, events}
				return opts.printer(cmd).print(out, func(w io.Writer) {
					fmt.Fprintf(w, "Revisions (%d):\n", len(revisions))
					for _, r := range revisions {
						writeRevision(w, r)
					}
					fmt.Fprintf(w, "Activity (%d):\n", len(events))
					for _, e := range events {
						fmt.Fprintf(w, "  %s  %-20s by %s\n", e.OccurredAt.Format("2006-01-02 15:04"), e.Type, e.ActorID)
					}
				})
			})
		},
	}
}

func writeEntry(w io.Writer, e models.Entry) {
	fmt.Fprintf(w, "%s [%s] %s v%d (%s)\n", e.Headword, e.LanguageID, e.Status, e.Version, e.ID)
	if e.Pronunciation != "" {
		fmt.Fprintf(w, "  /%s/\n", e.Pronunciation)
	}
	for i, m := range e.Meanings {
		for _, d := range m.Definitions {
			fmt.Fprintf(w, "  %d. (%s) %s\n", i+1, m.PartOfSpeech, d.Text)
			for _, ex := range d.Examples {
				fmt.Fprintf(w, "     e.g. %s\n", ex)
			}
		}
	}
	for _, t := range e.Translations {
		fmt.Fprintf(w, "  %s: %s\n", t.LanguageID, t.Text)
	}
}

func writeRevision(w io.Writer, r models.Revision) {
	fields := make([]string, 0, len(r.Changes))
	for _, f := range r.Changes.Fields() {
		fields = append(fields, string(f))
	}
	fmt.Fprintf(w, "  %s v%d %-8s by %s: %s\n", r.ID, r.Version, r.Status, r.SubmittedBy, strings.Join(fields, ", "))
}
