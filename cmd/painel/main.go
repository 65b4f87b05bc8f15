package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/iermgmt/painel/internal/config"
	"github.com/iermgmt/painel/internal/credstore"
	"github.com/iermgmt/painel/internal/guard"
	"github.com/iermgmt/painel/internal/navigation"
	"github.com/iermgmt/painel/internal/obs"
	"github.com/iermgmt/painel/internal/session"
)

type app struct {
	state *session.State
	menu  navigation.Menu
	out   io.Writer
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("painel encerrado com erro")
	}
}

func run(args []string) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	fs := pflag.NewFlagSet("painel", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	apiURL := fs.String("api", cfg.APIBaseURL, "URL base da API")
	redisURL := fs.String("redis", cfg.RedisURL, "Redis compartilhado entre abas (vazio usa memória)")
	origin := fs.String("origin", cfg.SessionOrigin, "origem que agrupa as abas")
	menuFile := fs.String("menu", "", "arquivo YAML com o menu (padrão: menu embutido)")
	verbose := fs.BoolP("verbose", "v", false, "logs de depuração")
	fs.Usage = usage(fs)
	fs.SetInterspersed(false)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("comando ausente")
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := log.Logger.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, *redisURL, *origin, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	menu := navigation.Default()
	if *menuFile != "" {
		if menu, err = loadMenu(*menuFile); err != nil {
			return err
		}
	}

	client, err := session.NewClient(store, session.Options{
		BaseURL: *apiURL,
		Timeout: cfg.HTTPTimeout,
		Metrics: obs.NewSessionMetrics(prometheus.NewRegistry()),
		Logger:  &logger,
	})
	if err != nil {
		return err
	}
	state := session.NewState(client, session.WithLogger(logger))
	defer state.Close()

	a := &app{state: state, menu: menu, out: os.Stdout}
	state.Initialize(ctx)

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "whoami":
		return a.whoami(ctx)
	case "logout":
		return a.logout(ctx)
	case "nav":
		return a.nav(rest)
	case "guard":
		return a.guard(rest)
	case "watch":
		return a.watch(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("comando desconhecido: %s", cmd)
	}
}

func usage(fs *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintln(os.Stderr, "painel: cliente de sessão")
		fmt.Fprintln(os.Stderr, "uso: painel [flags] <comando>")
		fmt.Fprintln(os.Stderr, "  login <id_number>      senha em PAINEL_PASSWORD ou na entrada padrão")
		fmt.Fprintln(os.Stderr, "  whoami                 valida a sessão e mostra o usuário")
		fmt.Fprintln(os.Stderr, "  logout")
		fmt.Fprintln(os.Stderr, "  nav [--location PATH]  menu lateral visível para o usuário")
		fmt.Fprintln(os.Stderr, "  guard <path>           decisão do guard para a rota")
		fmt.Fprintln(os.Stderr, "  watch                  acompanha mudanças feitas por outras abas")
		fs.PrintDefaults()
	}
}

func openStore(ctx context.Context, redisURL, origin string, logger zerolog.Logger) (credstore.Store, func(), error) {
	if strings.TrimSpace(redisURL) == "" {
		logger.Warn().Msg("REDIS_URL vazio: sessão em memória, perdida ao sair")
		return credstore.NewOrigin().Tab(), func() {}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis parse: %w", err)
	}
	rdb := redis.NewClient(opts)
	store, err := credstore.NewRedisStore(ctx, rdb, credstore.RedisOptions{Origin: origin, Logger: &logger})
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return store, func() {
		_ = store.Close()
		_ = rdb.Close()
	}, nil
}

func loadMenu(path string) (navigation.Menu, error) {
	f, err := os.Open(path)
	if err != nil {
		return navigation.Menu{}, fmt.Errorf("menu: %w", err)
	}
	defer f.Close()
	return navigation.LoadYAML(f)
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("uso: painel login <id_number>")
	}
	password := os.Getenv("PAINEL_PASSWORD")
	if password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("senha ausente")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	res := a.state.Login(ctx, args[0], password)
	if !res.OK {
		return fmt.Errorf("%s (%s)", res.Error, res.Kind)
	}
	return a.print(map[string]any{
		"user":     res.User,
		"redirect": res.Redirect,
	})
}

func (a *app) whoami(ctx context.Context) error {
	select {
	case <-a.state.Validated():
	case <-ctx.Done():
		return ctx.Err()
	}
	snap := a.state.Snapshot()
	if !snap.IsAuthenticated {
		msg := snap.Error
		if msg == "" {
			msg = "sem sessão"
		}
		return errors.New(msg)
	}
	return a.print(map[string]any{
		"user":     snap.User,
		"name":     snap.User.FullName(),
		"initials": snap.User.Initials(),
	})
}

func (a *app) logout(ctx context.Context) error {
	a.state.Logout(ctx)
	a.state.Wait()
	fmt.Fprintln(a.out, "sessão encerrada")
	return nil
}

func (a *app) nav(args []string) error {
	fs := pflag.NewFlagSet("nav", pflag.ContinueOnError)
	location := fs.String("location", session.LandingPath, "rota atual, para marcar o item ativo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	<-a.state.Validated()

	primary, secondary := a.menu.Sidebar(a.state.Snapshot().Role(), *location)
	return a.print(map[string]any{"main": primary, "secondary": secondary})
}

func (a *app) guard(args []string) error {
	if len(args) != 1 {
		return errors.New("uso: painel guard <path>")
	}
	g, ok := guard.ForPath(args[0])
	if !ok {
		return fmt.Errorf("rota sem guard: %s", args[0])
	}
	<-a.state.Validated()

	outcome := g.Evaluate(a.state.Snapshot())
	return a.print(map[string]any{
		"path":     args[0],
		"required": g.Required(),
		"decision": outcome.Decision.String(),
		"target":   outcome.Target,
	})
}

func (a *app) watch(ctx context.Context) error {
	cancel := a.state.Subscribe(func(snap session.Snapshot) {
		user := "-"
		if snap.User != nil {
			user = snap.User.IDNumber + " (" + string(snap.User.Role) + ")"
		}
		fmt.Fprintf(a.out, "v%d autenticado=%v carregando=%v usuario=%s erro=%q\n",
			snap.Version, snap.IsAuthenticated, snap.IsLoading, user, snap.Error)
	})
	defer cancel()
	<-ctx.Done()
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
