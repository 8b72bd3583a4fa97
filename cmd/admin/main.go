package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/iliyamo/balance-dashboard/internal/config"
	"github.com/iliyamo/balance-dashboard/internal/database"
	"github.com/iliyamo/balance-dashboard/internal/model"
	"github.com/iliyamo/balance-dashboard/internal/repository"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type userCreator interface {
	Create(ctx context.Context, u repository.NewUser, cost int) (uint64, error)
}

type commandLine struct {
	out     io.Writer
	users   userCreator
	migrate func(ctx context.Context) error
	cost    int
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate                                   - apply database migrations")
	fmt.Fprintln(cli.out, "  createuser -email EMAIL -name NAME [-admin] - create a dashboard user, password is prompted")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCmd := flag.NewFlagSet("createuser", flag.ContinueOnError)
	createCmd.SetOutput(cli.out)
	email := createCmd.String("email", "", "The user's email, also used to log in.")
	name := createCmd.String("name", "", "The user's full name.")
	admin := createCmd.Bool("admin", false, "Grant the ADMIN role.")
	username := createCmd.String("username", "", "Optional login name; defaults to the email.")

	switch args[1] {
	case "migrate":
		if err := cli.migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "migrations applied")
		return nil
	case "createuser":
		if err := createCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" || *name == "" {
			createCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) < 8 {
			return errors.New("password must be at least 8 characters")
		}
		role := model.RoleUser
		if *admin {
			role = model.RoleAdmin
		}
		if *username == "" {
			*username = *email
		}
		id, err := cli.users.Create(ctx, repository.NewUser{
			Username: *username,
			Email:    *email,
			FullName: *name,
			Password: string(pwd),
			Role:     role,
		}, cli.cost)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created user %d (%s)\n", id, role)
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func main() {
	cfg := config.Load()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer db.Close()

	cli := &commandLine{
		out:     os.Stdout,
		users:   repository.NewUserRepo(db),
		migrate: func(ctx context.Context) error { return database.Migrate(ctx, db) },
		cost:    cfg.BcryptCost,
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		exit(db, err)
	}
}

func exit(db *sql.DB, err error) {
	_ = db.Close()
	if errors.Is(err, errHelp) {
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
