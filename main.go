package main

import (
	"context"
	"csbot/internal/adapters/config"
	"csbot/internal/adapters/handler"
	"csbot/internal/adapters/sender"
	"csbot/internal/adapters/zulip"
	"csbot/internal/core/domain"
	"csbot/internal/core/domain/command"
	"csbot/internal/core/service"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const usage = `usage: csbot [-h] [-d] [-l LOGFILE] ZULIPRC

Zulip command bot. Answers private messages and @-mentions.

positional arguments:
  ZULIPRC               zuliprc file containing the bot's credentials

options:
`

func main() {
	flags := pflag.NewFlagSet("csbot", pflag.ContinueOnError)
	debug := flags.BoolP("debug", "d", false, "enable debug logging")
	logFile := flags.StringP("logfile", "l", "", "append log output to LOGFILE instead of stderr")
	help := flags.BoolP("help", "h", false, "show this help message and exit")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if *help {
		flags.Usage()
		os.Exit(0)
	}

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			log.Fatal().Err(err).Str("path", *logFile).Msg("could not open log file")
		}
		defer f.Close()

		log.Logger = zerolog.New(f).With().Timestamp().Logger()
	}

	log.Info().Msg("starting csbot...")

	config.Init()

	log.Info().Msg("reading zuliprc...")
	if err := config.LoadZuliprc(flags.Arg(0)); err != nil {
		log.Fatal().Err(err).Msg("could not read zuliprc")
	}

	logLevel := zerolog.InfoLevel
	if *debug || viper.GetString("bot.log_level") == "debug" {
		logLevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	handlerTimeout, err := time.ParseDuration(viper.GetString("bot.handler_timeout"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timeout for handler in config")
	}

	pollBackoff, err := time.ParseDuration(viper.GetString("bot.poll_backoff"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid poll backoff in config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := zulip.NewClient(
		viper.GetString("api.site"),
		viper.GetString("api.email"),
		viper.GetString("api.key"))

	profile, err := client.Profile(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to authenticate with zulip")
	}
	log.Info().Int64("userId", profile.UserID).Str("name", profile.FullName).Msg("authenticated")

	commandRegistry := command.NewRegistry()
	registerCommands(commandRegistry)

	router := service.NewRouter(
		commandRegistry,
		service.NewAuthorizer(client),
		domain.NewMention(profile.FullName, profile.UserID),
		handlerTimeout)

	listener := handler.NewListener(client, router, sender.NewZulip(client, profile.Email), profile, pollBackoff)

	log.Info().Strs("commands", commandRegistry.ListCommands()).Msg("bot listening")
	if err := listener.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("listener failed")
	}
}

func registerCommands(r *command.Registry) {
	must := func(err error) {
		if err != nil {
			log.Fatal().Err(err).Msg("failed registering command")
		}
	}

	must(r.Register("debug", command.DebugDescription, command.NewDebug().Handle))
	must(r.Register("status", command.StatusDescription, command.NewStatus(time.Now()).Handle, command.Privileged()))
}
