package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/urfave/cli"

	"github.com/chris-pikul/wormhole-rendezvous/internal/config"
	"github.com/chris-pikul/wormhole-rendezvous/internal/log"
	"github.com/chris-pikul/wormhole-rendezvous/internal/rendezvous"
	"github.com/chris-pikul/wormhole-rendezvous/internal/store"
	"github.com/chris-pikul/wormhole-rendezvous/internal/transport/ws"
)

//Version holds the CLI application version.
const Version = "0.1.0"

const usageText = `wormhole-rendezvous [global options...] [command]

   Default command is "serve".
   If the config option is provided, then all the other options are
   ignored and the json file is used instead.
`

var cfg config.Options

func main() {
	app := cli.NewApp()
	app.Name = "Magic Wormhole Rendezvous Server"
	app.Usage = "facilitate nameplate/mailbox introduction for the wormhole protocol"
	app.UsageText = usageText
	app.HelpName = "wormhole-rendezvous"
	app.Version = Version

	app.Flags = serveFlags()
	app.Action = runServe

	app.Commands = []cli.Command{
		cli.Command{
			Name:   "serve",
			Usage:  "serve rendezvous requests (default command)",
			Action: runServe,
			Flags:  serveFlags(),
		},
		cli.Command{
			Name:   "clean",
			Usage:  "runs one pruning pass against the database and exits",
			Action: runClean,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "config, c", Usage: "configuration JSON `FILE` to use instead of options"},
				cli.StringFlag{Name: "db, d", Usage: "path to SQLite database `FILE`", Value: config.DefaultOptions.DBFile},
				cli.UintFlag{Name: "channel-exp", Usage: "channel expiration in `HOURS`", Value: config.DefaultOptions.ChannelExpirationHours},
				cli.StringFlag{Name: "log, l", Usage: "`FILE` to write logs to"},
				cli.StringFlag{Name: "log-level, L", Usage: "logging `LEVEL` [DEBUG|INFO|WARN|ERROR]", Value: config.DefaultOptions.Logging.Level},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "configuration JSON `FILE` to use instead of options (empty = no config)",
		},
		cli.StringFlag{
			Name:  "host",
			Usage: "`HOST` address or IP for the listening interface",
			Value: config.DefaultOptions.Host,
		},
		cli.UintFlag{
			Name:  "port",
			Usage: "`PORT` number to listen on",
			Value: config.DefaultOptions.Port,
		},
		cli.StringFlag{
			Name:  "db, d",
			Usage: "path to SQLite database `FILE`",
			Value: config.DefaultOptions.DBFile,
		},
		cli.BoolFlag{
			Name:  "no-list",
			Usage: "disable the 'list' request",
		},
		cli.StringFlag{
			Name:  "advert-version",
			Usage: "which `VERSION` to recommend to clients",
		},
		cli.StringSliceFlag{
			Name:  "app",
			Usage: "restrict bind to this `APP_ID` (repeatable; empty allow-list permits any app_id)",
		},
		cli.UintFlag{
			Name:  "cleaning, C",
			Usage: "time interval inbetween pruning passes in `MINUTES`",
			Value: config.DefaultOptions.CleaningIntervalMinutes,
		},
		cli.UintFlag{
			Name:  "channel-exp, e",
			Usage: "channel expiration time in `HOURS` (should be larger than cleaning period)",
			Value: config.DefaultOptions.ChannelExpirationHours,
		},
		cli.Int64Flag{
			Name:  "blur-usage",
			Usage: "round out usage log 'started' timestamps to `SECONDS` (0 disables blurring)",
		},
		cli.StringFlag{
			Name:  "log, l",
			Usage: "`FILE` to write usage/error logs to (empty does not write logs)",
			Value: config.DefaultOptions.Logging.Path,
		},
		cli.StringFlag{
			Name:  "log-level, L",
			Usage: "logging `LEVEL` to use, options are [DEBUG|INFO|WARN|ERROR]",
			Value: config.DefaultOptions.Logging.Level,
		},
		cli.UintFlag{
			Name:  "log-blur",
			Usage: "round out access times to `SECONDS` provided in logging to improve privacy",
			Value: config.DefaultOptions.Logging.BlurSeconds,
		},
	}
}

//initialize loads configuration and starts logging, common to every command.
func initialize(c *cli.Context) error {
	var err error

	cfgFile := c.String("config")
	cfg, err = config.NewOptions(nil, cfgFile, c)
	if err != nil {
		return fmt.Errorf("failed to parse configuration options: %w", err)
	}

	if err := log.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("failed to start logging: %w", err)
	}
	log.Info("initialized logging")

	return nil
}

func runServe(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	st, err := store.Open(cfg.DBFile)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	rend := rendezvous.New(st, nil, cfg.BlurUsageSeconds, nil)
	server := ws.New(cfg, rend, st, nil)
	server.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)

	//The listener runs inside the same errgroup as the prune loop and
	//the signal watcher, so its exit (clean or not) is observed by
	//group.Wait() instead of vanishing into a bare goroutine.
	group.Go(server.Serve)

	group.Go(func() error {
		rend.RunPruneLoop(gctx, time.Duration(cfg.CleaningIntervalMinutes)*time.Minute)
		return nil
	})

	group.Go(func() error {
		waitForSignal(gctx, cancel)
		return nil
	})

	//Shutting the listener down is what lets server.Serve return, so it
	//must happen concurrently with group.Wait(), not after it.
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Err("rendezvous server stopped with error", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}

func runClean(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	st, err := store.Open(cfg.DBFile)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	rend := rendezvous.New(st, nil, cfg.BlurUsageSeconds, nil)
	if err := rend.Prune(time.Now()); err != nil {
		log.Err("failed to clean database", err)
		return err
	}

	log.Info("database pruned")
	return nil
}

//waitForSignal blocks until ctx is canceled or the process receives an
//interrupt or SIGTERM, calling cancel to trigger shutdown in the
//latter case.
func waitForSignal(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		log.Info("closing due to interrupt")
		cancel()
	case <-ctx.Done():
	}
}
