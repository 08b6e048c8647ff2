package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/xeptore/xmlydl/config"
	"github.com/xeptore/xmlydl/constant"
	"github.com/xeptore/xmlydl/log"
	"github.com/xeptore/xmlydl/ximalaya"
	"github.com/xeptore/xmlydl/ximalaya/auth"
	"github.com/xeptore/xmlydl/ximalaya/types"
)

func main() {
	logger := log.NewDefault()

	//nolint:exhaustruct
	app := &cli.Command{
		Name:    "xmlydl",
		Version: constant.Version,
		Metadata: map[string]any{
			"compiled_at": constant.CompileTime,
		},
		Suggest:                    true,
		Usage:                      "Ximalaya album downloader",
		EnableShellCompletion:      true,
		ShellCompletionCommandName: "shell-completion",
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Config file path",
				Required: false,
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:   "login",
				Usage:  "Store the cookie of a logged in web session",
				Action: login,
			},
			//nolint:exhaustruct
			{
				Name:   "whoami",
				Usage:  "Show the account the stored cookie belongs to",
				Action: whoami,
			},
			//nolint:exhaustruct
			{
				Name:  "album",
				Usage: "Album commands",
				Commands: []*cli.Command{
					//nolint:exhaustruct
					{
						Name:      "info",
						Usage:     "Show album details and its tracks",
						ArgsUsage: "<album id or link>",
						Action:    albumInfo,
					},
					//nolint:exhaustruct
					{
						Name:      "download",
						Usage:     "Download album tracks",
						ArgsUsage: "<album id or link>",
						Flags: []cli.Flag{
							//nolint:exhaustruct
							&cli.IntFlag{
								Name:  "start",
								Usage: "First track position to download, starting from 1",
								Value: 0,
							},
							//nolint:exhaustruct
							&cli.IntFlag{
								Name:  "end",
								Usage: "Last track position to download, defaults to the last track",
								Value: 0,
							},
							//nolint:exhaustruct
							&cli.StringFlag{
								Name:  "quality",
								Usage: "Audio quality: low, medium or high (defaults to config)",
							},
							//nolint:exhaustruct
							&cli.BoolFlag{
								Name:  "numbered",
								Usage: "Prefix file names with the track position (defaults to config)",
							},
							//nolint:exhaustruct
							&cli.StringFlag{
								Name:    "out",
								Aliases: []string{"o"},
								Usage:   "Download directory (defaults to config)",
							},
						},
						Action: albumDownload,
					},
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			os.Exit(1)
		}

		var exitCode exitCodeError
		if errors.As(err, &exitCode) {
			os.Exit(int(exitCode))
		}

		logger.Error().Err(err).Msg("Application exited with error")
		os.Exit(10)
	}
}

type exitCodeError int

func (e exitCodeError) Error() string {
	return "error with exit code: " + strconv.Itoa(int(e))
}

func setup(cmd *cli.Command) (zerolog.Logger, *ximalaya.Client, *config.Config, error) {
	logger := log.NewDefault()

	if err := godotenv.Load(); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return logger, nil, nil, fmt.Errorf("load .env file: %v", err)
		}
		logger.Debug().Msg(".env file was not found")
	} else {
		logger.Debug().Msg(".env file was loaded")
	}

	conf, err := config.Load(cmd.Root().String("config"))
	if nil != err {
		return logger, nil, nil, fmt.Errorf("load config: %v", err)
	}

	logger = log.FromConfig(conf.Log)

	logger.Debug().Dict("config", conf.ToDict()).Msg("Config loaded")

	client, err := ximalaya.NewClient(conf.Ximalaya)
	if nil != err {
		return logger, nil, nil, fmt.Errorf("create ximalaya client: %v", err)
	}
	logger.Debug().Msg("Ximalaya client created")

	return logger, client, conf, nil
}

func login(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, client, _, err := setup(cmd)
	if nil != err {
		return err
	}

	userName, err := client.Login(ctx, logger, auth.NewPromptCookieSource())
	if nil != err {
		if errors.Is(err, auth.ErrNotTerminal) {
			logger.Error().Msg("No TTY detected. Please run the container with `--tty` or set `tty: true` in Docker Compose.")
			return exitCodeError(1)
		}

		if errors.Is(err, auth.ErrUnauthorized) {
			logger.Error().Msg("The cookie was rejected. Please make sure it belongs to a logged in session.")
			return exitCodeError(2)
		}

		return fmt.Errorf("login: %w", err)
	}

	logger.Info().Str("user", userName).Str("cookie_file", client.CookieFilePath()).Msg("Logged in successfully")

	return nil
}

func whoami(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, client, _, err := setup(cmd)
	if nil != err {
		return err
	}

	userName, err := client.CurrentUser(ctx, logger)
	if nil != err {
		if errors.Is(err, ximalaya.ErrLoginRequired) {
			logger.Error().Msg("No cookie is stored. Please login first.")
			return exitCodeError(2)
		}

		if errors.Is(err, ximalaya.ErrUnauthorized) {
			logger.Error().Msg("The stored cookie has expired. Please login again.")
			return exitCodeError(2)
		}

		return fmt.Errorf("get current user: %w", err)
	}

	fmt.Fprintln(os.Stdout, userName)

	return nil
}

func albumID(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", errors.New("exactly one album id or link argument is required")
	}

	id, err := ximalaya.ParseAlbumID(cmd.Args().First())
	if nil != err {
		return "", err
	}

	return id, nil
}

func albumInfo(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, client, _, err := setup(cmd)
	if nil != err {
		return err
	}

	id, err := albumID(cmd)
	if nil != err {
		return err
	}

	info, err := client.AlbumInfo(ctx, logger, id)
	if nil != err {
		return fmt.Errorf("get album info: %w", err)
	}

	fmt.Fprintln(os.Stdout, text.Bold.Sprint(info.Album.Title))
	fmt.Fprintf(os.Stdout, "%d tracks, %s\n", len(info.Album.Tracks), albumKindText(info.Kind))

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"#", "ID", "Title"})
	for _, track := range info.Album.Tracks {
		tw.AppendRow(table.Row{track.Index, track.ID, track.Title})
	}
	tw.Render()

	return nil
}

func albumKindText(k types.AlbumKind) string {
	switch k {
	case types.AlbumKindFree:
		return text.FgGreen.Sprint(k.String())
	case types.AlbumKindPurchased:
		return text.FgCyan.Sprint(k.String())
	default:
		return text.FgYellow.Sprint(k.String())
	}
}

func albumDownload(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, client, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	id, err := albumID(cmd)
	if nil != err {
		return err
	}

	qualityName := conf.Ximalaya.Downloader.Quality
	if cmd.IsSet("quality") {
		qualityName = cmd.String("quality")
	}
	quality, err := types.ParseQuality(qualityName)
	if nil != err {
		return err
	}

	numbered := *conf.Ximalaya.Downloader.Numbered
	if cmd.IsSet("numbered") {
		numbered = cmd.Bool("numbered")
	}

	targetDir := conf.Ximalaya.Downloader.Dir
	if cmd.IsSet("out") {
		targetDir = cmd.String("out")
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(
			-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Downloading"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	res, err := client.TryDownloadAlbum(ctx, logger, ximalaya.DownloadRequest{
		AlbumID:   id,
		Start:     int(cmd.Int("start")),
		End:       int(cmd.Int("end")),
		Quality:   quality,
		Numbered:  numbered,
		TargetDir: targetDir,
		OnJobs: func(n int) {
			if nil != bar {
				bar.ChangeMax(n)
			}
		},
		OnOutcome: func(o types.DownloadOutcome) {
			if nil != bar && !o.NeedsRetry() {
				_ = bar.Add(1)
			}
		},
	})
	if nil != bar {
		_ = bar.Finish()
	}
	if nil != err {
		if errors.Is(err, ximalaya.ErrInvalidRange) {
			logger.Error().Err(err).Msg("Invalid track range")
			return exitCodeError(3)
		}

		if nil != res && nil != res.Report {
			printReport(res.Report)
		}

		return fmt.Errorf("download album: %w", err)
	}

	printReport(res.Report)
	if len(res.Report.PermanentlyFailed) > 0 {
		return exitCodeError(4)
	}

	return nil
}

func printReport(r *types.BatchReport) {
	fmt.Fprintf(
		os.Stdout,
		"%s downloaded (%s), %s skipped, %s failed\n",
		text.FgGreen.Sprint(r.Succeeded),
		humanize.Bytes(uint64(r.Bytes)), //nolint:gosec
		text.FgCyan.Sprint(r.Skipped),
		text.FgRed.Sprint(len(r.PermanentlyFailed)),
	)

	if len(r.PermanentlyFailed) == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("Failed tracks")
	tw.AppendHeader(table.Row{"Name", "Album", "Generation"})
	for _, job := range r.PermanentlyFailed {
		tw.AppendRow(table.Row{job.DisplayName, job.AlbumName, job.Generation})
	}
	tw.Render()
}
