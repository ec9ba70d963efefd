package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/lexicon/internal/moderation"
	"github.com/example/lexicon/pkg/models"
)

// ActorOptions holds flags for the actor set command.
type ActorOptions struct {
	*RootOptions
	Role   string
	Name   string
	ChatID int64
}

// NewActorCommand creates the actor command and its subcommands.
func NewActorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Manage users and their roles",
	}

	set := &cobra.Command{
		Use:   "set <actor-id>",
		Short: "Create or update a user",
		Long: `Create or update a user. Anyone may change their own display name and
telegram chat; changing a role requires an admin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				return opts.set(ctx, cmd, app, args[0])
			})
		},
	}
	set.Flags().StringVar(&opts.Role, "role", "", "user|contributor|moderator|admin|superadmin")
	set.Flags().StringVar(&opts.Name, "name", "", "display name")
	set.Flags().Int64Var(&opts.ChatID, "chat-id", 0, "telegram chat for notifications")

	list := &cobra.Command{
		Use:   "list",
		Short: "List known users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts.RootOptions, func(ctx context.Context, app *App) error {
				actors, err := app.Actors.GetAll(ctx)
				if err != nil {
					return err
				}
				return opts.printer(cmd).print(actors, func(w io.Writer) {
					for _, a := range actors {
						fmt.Fprintf(w, "  %-20s %-12s %s\n", a.ID, a.Role, a.DisplayName)
					}
				})
			})
		},
	}

	cmd.AddCommand(set, list)
	return cmd
}

func (o *ActorOptions) set(ctx context.Context, cmd *cobra.Command, app *App, id string) error {
	caller, err := app.ResolveActor(ctx, o.Actor)
	if err != nil {
		return err
	}
	target, err := app.ResolveActor(ctx, id)
	if err != nil {
		return err
	}

	if o.Role != "" && models.Role(o.Role) != target.Role {
		role := models.Role(o.Role)
		if !role.Valid() {
			return WrapExitError(ExitCommandError, "invalid role", fmt.Errorf("unknown role %q", o.Role))
		}
		if caller.Role != models.RoleAdmin && caller.Role != models.RoleSuperadmin {
			return &moderation.Error{Kind: moderation.KindPermissionDenied, Op: "set_role", Message: "only admins can change roles"}
		}
		target.Role = role
	} else if caller.ID != id && !caller.IsPrivileged() {
		return &moderation.Error{Kind: moderation.KindPermissionDenied, Op: "update_actor", Message: "cannot update another user"}
	}

	if o.Name != "" {
		target.DisplayName = o.Name
	}
	if cmd.Flags().Changed("chat-id") {
		chat := o.ChatID
		target.TelegramChatID = &chat
	}
	if err := app.Actors.Save(ctx, target); err != nil {
		return err
	}
	return o.printer(cmd).print(target, func(w io.Writer) {
		fmt.Fprintf(w, "Saved %s (%s)\n", target.ID, target.Role)
	})
}

// NewLinkCommand creates the link command.
func NewLinkCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <source-entry-id> <target-entry-id>",
		Short: "Record that one entry translates another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				for _, id := range args {
					if _, err := app.Engine.GetEntry(ctx, actor, id); err != nil {
						return err
					}
				}
				if err := app.Dependents.LinkTranslation(ctx, args[0], args[1]); err != nil {
					return err
				}
				return opts.printer(cmd).print(map[string]string{"source": args[0], "target": args[1]}, func(w io.Writer) {
					fmt.Fprintf(w, "Linked %s -> %s\n", args[0], args[1])
				})
			})
		},
	}
}

// NewFavoriteCommand creates the favorite command.
func NewFavoriteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <entry-id>",
		Short: "Add an entry to the actor's favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				actor, err := app.ResolveActor(ctx, opts.Actor)
				if err != nil {
					return err
				}
				if !actor.Authenticated() {
					return &moderation.Error{Kind: moderation.KindPermissionDenied, Op: "favorite", Message: "sign in to keep favorites"}
				}
				if _, err := app.Engine.GetEntry(ctx, actor, args[0]); err != nil {
					return err
				}
				if err := app.Dependents.AddFavorite(ctx, args[0], actor.ID); err != nil {
					return err
				}
				return opts.printer(cmd).print(map[string]string{"favorite": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Added %s to favorites\n", args[0])
				})
			})
		},
	}
}

// NewCategoriesCommand creates the categories command.
func NewCategoriesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories and how many entries each holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				categories, err := app.Categories.GetAll(ctx)
				if err != nil {
					return err
				}
				if categories == nil {
					categories = []models.CategorySummary{}
				}
				return opts.printer(cmd).print(categories, func(w io.Writer) {
					for _, c := range categories {
						fmt.Fprintf(w, "  %-24s %-24s %d\n", c.ID, c.Name, c.EntryCount)
					}
				})
			})
		},
	}
}
