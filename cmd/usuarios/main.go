package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/iermgmt/painel/internal/db"
	"github.com/iermgmt/painel/internal/repo"
	"github.com/iermgmt/painel/internal/service"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("falha ao aplicar migrações")
	}

	users := service.NewUserService(repo.New(pool))

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create":
		if err := runCreate(ctx, users, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao criar usuário")
		}
	case "list":
		if err := runList(ctx, users); err != nil {
			log.Fatal().Err(err).Msg("falha ao listar usuários")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usuarios CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  usuarios create --id-number A-1 --first-name Ana --last-name Souza --email ana@painel.local --level admin")
	fmt.Fprintln(os.Stderr, "  usuarios list")
	fmt.Fprintln(os.Stderr, "a senha vem de PAINEL_PASSWORD ou da primeira linha da entrada padrão")
}

func runCreate(ctx context.Context, users *service.UserService, args []string) error {
	fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		idNumber   = fs.String("id-number", "", "número de identificação usado no login")
		firstName  = fs.String("first-name", "", "nome")
		lastName   = fs.String("last-name", "", "sobrenome")
		middleName = fs.String("middle-name", "", "nome do meio (opcional)")
		email      = fs.String("email", "", "e-mail")
		level      = fs.String("level", "inspector", "nível de acesso: admin, manager ou inspector")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	in := service.CreateUserInput{
		IDNumber:  *idNumber,
		FirstName: *firstName,
		LastName:  *lastName,
		Email:     *email,
		Role:      *level,
		Password:  password,
	}
	if m := strings.TrimSpace(*middleName); m != "" {
		in.MiddleName = &m
	}

	created, err := users.CreateUser(ctx, in)
	if err != nil {
		return err
	}

	output, _ := json.MarshalIndent(created, "", "  ")
	fmt.Println(string(output))
	return nil
}

func runList(ctx context.Context, users *service.UserService) error {
	list, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("nenhum usuário cadastrado")
		return nil
	}

	encoded, _ := json.MarshalIndent(list, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

func readPassword() (string, error) {
	if pw := os.Getenv("PAINEL_PASSWORD"); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("senha ausente: %w", err)
		}
		return "", errors.New("senha ausente")
	}
	return line, nil
}
