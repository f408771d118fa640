package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/csndl/config"
	"github.com/xeptore/csndl/constant"
	"github.com/xeptore/csndl/csn"
	"github.com/xeptore/csndl/ctxutil"
	"github.com/xeptore/csndl/errutil"
	"github.com/xeptore/csndl/httputil"
	"github.com/xeptore/csndl/log"
)

const (
	flagUsername  = "username"
	flagPassword  = "password"
	flagQuality   = "quality"
	flagThreads   = "threads"
	flagOutputDir = "output"
	flagConfig    = "config"
	flagBaseURL   = "base-url"
	flagLogFormat = "log-format"
	flagLogLevel  = "log-level"
	flagStrict    = "strict"

	exitCodeIncomplete = 2
)

func main() {
	logger := log.NewPretty(os.Stderr)
	if err := godotenv.Load(); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug().Msg(".env file was not found")
		} else {
			logger.Fatal().Err(err).Msg("Failed to load .env file")
		}
	}

	if err := newApp().Run(os.Args); nil != err {
		var exitErr cli.ExitCoder
		switch {
		case errors.As(err, &exitErr):
			logger.Error().Int("exit_code", exitErr.ExitCode()).Msg(exitErr.Error())
			os.Exit(exitErr.ExitCode())
		case errors.Is(err, context.Canceled):
			logger.Warn().Msg("Application was canceled")
			os.Exit(1)
		}
		if flawErr := new(flaw.Flaw); errors.As(err, &flawErr) {
			logger.Fatal().Func(log.Flaw(flawErr)).Msg("Application exited with flaw")
			return
		}
		logger.Fatal().Err(err).Msg("Application exited with error")
	}
}

func newApp() *cli.App {
	defaults := config.Default()

	//nolint:exhaustruct
	return &cli.App{
		Name:      constant.AppName,
		Version:   constant.Version,
		Compiled:  constant.CompileTime,
		Suggest:   true,
		Usage:     "Download albums from chiasenhac.vn",
		ArgsUsage: "URL",
		Action:    run,
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:    flagUsername,
				Aliases: []string{"u"},
				Usage:   "Account email used to log in",
				EnvVars: []string{"CSN_USERNAME"},
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:    flagPassword,
				Aliases: []string{"p"},
				Usage:   "Account password used to log in",
				EnvVars: []string{"CSN_PASSWORD"},
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:    flagQuality,
				Aliases: []string{"q"},
				Usage:   "Music quality, one of 32, 128, 320, m4a, flac",
				Value:   defaults.Quality,
			},
			//nolint:exhaustruct
			&cli.IntFlag{
				Name:    flagThreads,
				Aliases: []string{"t"},
				Usage:   "Number of concurrent track downloads",
				Value:   defaults.Threads,
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:    flagOutputDir,
				Aliases: []string{"o"},
				Usage:   "Output directory",
				Value:   defaults.OutputDir,
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Optional YAML config file. Flags take precedence over its values",
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:  flagBaseURL,
				Usage: "Site root URL",
				Value: defaults.BaseURL,
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:  flagLogFormat,
				Usage: "Log format, pretty or packed",
				Value: log.FormatPretty,
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "Log level, one of trace, debug, info, warn, error",
				Value: zerolog.InfoLevel.String(),
			},
			//nolint:exhaustruct
			&cli.BoolFlag{
				Name:  flagStrict,
				Usage: "Exit with status 2 when any track was skipped or failed",
			},
		},
		// main applies exit codes itself, after logging.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// loadConfig merges, from lowest to highest precedence, defaults, the config
// file and the flags explicitly set on the command line.
func loadConfig(cliCtx *cli.Context) (*config.Config, error) {
	cfg := lo.ToPtr(config.Default())
	if filePath := cliCtx.String(flagConfig); filePath != "" {
		c, err := config.FromFile(filePath)
		if nil != err {
			return nil, err
		}
		cfg = c
	}

	if cliCtx.IsSet(flagBaseURL) {
		cfg.BaseURL = cliCtx.String(flagBaseURL)
	}
	if cliCtx.IsSet(flagQuality) {
		cfg.Quality = cliCtx.String(flagQuality)
	}
	if cliCtx.IsSet(flagThreads) {
		cfg.Threads = cliCtx.Int(flagThreads)
	}
	if cliCtx.IsSet(flagOutputDir) {
		cfg.OutputDir = cliCtx.String(flagOutputDir)
	}

	if err := cfg.Validate(); nil != err {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}

func run(cliCtx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := log.New(os.Stderr, cliCtx.String(flagLogFormat), cliCtx.String(flagLogLevel))
	if nil != err {
		return err
	}

	albumURL := cliCtx.Args().First()
	if albumURL == "" {
		_ = cli.ShowAppHelp(cliCtx)
		return errors.New("album URL argument is required")
	}

	cfg, err := loadConfig(cliCtx)
	if nil != err {
		return err
	}

	reqOpts, unknown, err := config.ParseRequestOptions(os.Getenv(config.EnvRequestOptions))
	if nil != err {
		return err
	}
	if len(unknown) > 0 {
		logger.Warn().Strs("keys", unknown).Msg("Ignoring unsupported " + config.EnvRequestOptions + " keys")
	}
	if !reqOpts.IsZero() {
		logger.Debug().Interface("request_options", reqOpts.FlawP()).Msg("Applying extra request options")
	}

	client, err := httputil.NewClient(reqOpts)
	if nil != err {
		return err
	}

	runCtx, runCancel := ctxutil.WithDelayedTimeout(ctx, config.ShutdownGracePeriod)
	defer runCancel()

	logger.Info().Str("album_url", albumURL).Str("quality", cfg.Quality).Int("threads", cfg.Threads).Msg("Starting album download")
	report, err := csn.Run(runCtx, csn.Options{
		AlbumURL: albumURL,
		BaseURL:  cfg.BaseURL,
		Credentials: csn.Credentials{
			Username: cliCtx.String(flagUsername),
			Password: cliCtx.String(flagPassword),
		},
		Quality:   csn.Quality(cfg.Quality),
		Threads:   cfg.Threads,
		OutputDir: cfg.OutputDir,
		Client:    client,
		Parser:    csn.NewHTMLParser(),
		Logger:    logger,
	})
	if nil != err {
		if layoutErr, ok := errutil.IsAny(err, csn.ErrCSRFTokenNotFound, csn.ErrAlbumTableNotFound, csn.ErrAlbumMetaNotFound); ok {
			logger.Error().Err(err).Msg("Page layout is not recognized")
			return cli.Exit(layoutErr.Error(), 1)
		}
		switch {
		case errors.Is(err, csn.ErrLoginFailed):
			return cli.Exit("Login not ok", 1)
		case errors.Is(err, csn.ErrUnsupportedQuality):
			return cli.Exit(fmt.Sprintf("Quality %s is not available: use one of 32 or 128 without login, or provide credentials", cfg.Quality), 1)
		case errutil.IsContext(runCtx):
			return context.Canceled
		case errors.Is(err, context.DeadlineExceeded):
			return cli.Exit("Connection timeout", 1)
		case errutil.IsFlaw(err):
			return err
		default:
			panic(errutil.UnknownError(err))
		}
	}

	if cliCtx.Bool(flagStrict) && !report.Complete() {
		return cli.Exit(fmt.Sprintf("%d of %d tracks were not downloaded", report.Total-report.Downloaded, report.Total), exitCodeIncomplete)
	}
	return nil
}
