// Command memberctl performs operator tasks against the member database.
//
//	memberctl bootstrap
//	memberctl provision -name "Ada" -email ada@example.com -role Admin
//	memberctl set-password -email ada@example.com
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	auth "github.com/goliatone/go-member-auth"
	"github.com/goliatone/go-member-auth/config"
	"github.com/goliatone/go-member-auth/database"
	"github.com/goliatone/go-member-auth/storage/memblob"
	"github.com/google/uuid"
	"golang.org/x/term"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin *os.File, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: memberctl <bootstrap|provision|set-password> [flags]")
	}

	cfg := config.Load()
	if cfg.Token.Secret == "" {
		// commands never issue email links
		cfg.Token.Secret = "memberctl"
	}

	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := auth.NewService(auth.ServiceOptions{
		DB: db,
		KDF: auth.KDFConfig{
			Iterations:    cfg.KDF.Iterations,
			KeyLength:     cfg.KDF.KeyLength,
			Digest:        cfg.KDF.Digest,
			SaltBytes:     cfg.KDF.SaltBytes,
			MaxConcurrent: cfg.KDF.MaxConcurrent,
		},
		Blobs:       memblob.New("memory://"),
		TokenSecret: cfg.Token.Secret,
	})
	if err != nil {
		return err
	}

	if err := svc.Bootstrap(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "bootstrap":
		fmt.Fprintln(stdout, "schema and default roles ready")
		return nil
	case "provision":
		return provision(ctx, svc, args[1:], stdin, stdout)
	case "set-password":
		return setPassword(ctx, svc, args[1:], stdin, stdout)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func provision(ctx context.Context, svc *auth.Service, args []string, stdin *os.File, stdout io.Writer) error {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	role := fs.String("role", auth.RoleMember, "role name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := readPassword(stdin, stdout)
	if err != nil {
		return err
	}

	var id uuid.UUID
	err = svc.Provision.Execute(ctx, auth.ProvisionAccountMessage{
		Name:     *name,
		Email:    *email,
		Password: password,
		Role:     *role,
		OnResponse: func(account *auth.Account) {
			id = account.ID
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "account %s created for %s\n", id, auth.NormalizeEmail(*email))
	return nil
}

func setPassword(ctx context.Context, svc *auth.Service, args []string, stdin *os.File, stdout io.Writer) error {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := readPassword(stdin, stdout)
	if err != nil {
		return err
	}

	account, err := svc.Repo.Accounts().GetByEmail(ctx, *email)
	if err != nil {
		return err
	}
	if err := svc.Credentials.Rotate(ctx, account, password); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "password updated for %s\n", account.Email)
	return nil
}

func readPassword(stdin *os.File, stdout io.Writer) (string, error) {
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(stdout, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(stdout)
	if err != nil {
		return "", err
	}

	fmt.Fprint(stdout, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(stdout)
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
