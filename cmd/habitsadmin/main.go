package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"habitsAPI/internal/config"
	"habitsAPI/internal/docstore"
	"habitsAPI/internal/firebaseapp"
	"habitsAPI/internal/triggers"
	"habitsAPI/utils"
)

type Context struct {
	Ctx   context.Context
	Store docstore.Store
}

type FriendsCheckCmd struct {
	Fix bool `help:"Remove one-sided friendships."`
}

func (c *FriendsCheckCmd) Run(app *Context) error {
	report, err := triggers.CheckFriendships(app.Ctx, app.Store, c.Fix)
	if err != nil {
		return err
	}
	if len(report.Asymmetric) == 0 {
		fmt.Println("All friendships are symmetric.")
		return nil
	}
	for _, pair := range report.Asymmetric {
		fmt.Printf("asymmetric: %s\n", pair)
	}
	if c.Fix {
		fmt.Printf("Repaired %d friendships.\n", len(report.Asymmetric))
	}
	return nil
}

type UsernamesCheckCmd struct {
	Fix bool `help:"Recreate missing mappings and delete orphans."`
}

func (c *UsernamesCheckCmd) Run(app *Context) error {
	report, err := triggers.CheckUsernames(app.Ctx, app.Store, c.Fix)
	if err != nil {
		return err
	}
	if report.Clean() {
		fmt.Println("Usernames are consistent.")
		return nil
	}
	for name, uid := range report.Missing {
		fmt.Printf("missing mapping: %s -> %s\n", name, uid)
	}
	for _, name := range report.Orphaned {
		fmt.Printf("orphaned mapping: %s\n", name)
	}
	if c.Fix {
		fmt.Println("Repaired.")
	}
	return nil
}

type FormatSecondsCmd struct {
	Seconds int    `arg:"" help:"Duration in seconds."`
	Format  string `help:"letters or digital." enum:"letters,digital" default:"letters"`
}

func (c *FormatSecondsCmd) Run(*Context) error {
	fmt.Println(utils.FormatSeconds(c.Seconds, c.Format))
	return nil
}

var CLI struct {
	Env string `help:"Env file to load before reading the environment." type:"path" default:".env"`

	Friends struct {
		Check FriendsCheckCmd `cmd:"" help:"Find friendships only one side knows about."`
	} `cmd:"" help:"Friend list maintenance."`
	Usernames struct {
		Check UsernamesCheckCmd `cmd:"" help:"Compare profiles against username mappings."`
	} `cmd:"" help:"Username maintenance."`
	FormatSeconds FormatSecondsCmd `cmd:"" help:"Render a duration the way clients show it."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("habitsadmin"),
		kong.Description("Maintenance tasks for the habits API store"),
		kong.UsageOnError(),
	)

	ctx := context.Background()
	app := &Context{Ctx: ctx}
	if kctx.Command() != "format-seconds <seconds>" {
		store, err := openStore(ctx, CLI.Env)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		app.Store = store
	}

	if err := kctx.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, envFile string) (docstore.Store, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		app, err := firebaseapp.New(ctx, firebaseapp.Credentials{
			ProjectID:  cfg.GCPProjectID,
			File:       cfg.FirebaseCredentials,
			JSONBase64: cfg.FirebaseCredentialsJSON,
		})
		if err != nil {
			return nil, err
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore client: %w", err)
		}
		return docstore.NewFirestore(client), nil
	case config.BackendPostgres:
		return docstore.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("store backend %q holds no persistent data", cfg.StoreBackend)
	}
}
