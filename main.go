package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dilshat/birthday-sender/controller"
	"github.com/dilshat/birthday-sender/dao"
	_ "github.com/dilshat/birthday-sender/docs"
	"github.com/dilshat/birthday-sender/log"
	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/scheduler"
	"github.com/dilshat/birthday-sender/service"
	"github.com/dilshat/birthday-sender/sms"
	"github.com/dilshat/birthday-sender/util"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// @title Birthday sender HTTP API
// @description Daily birthday greetings and peer notifications over SMS

// @contact.name Dilshat Aliev
// @contact.email dilshat.aliev@gmail.com

var (
	dbPath   string
	logLevel string
	logDev   bool
	httpPort string
	schedule string
	tzName   string
	onStart  bool
)

func init() {
	err := godotenv.Load()
	if err != nil && util.FileExists(".env") {
		fmt.Fprintln(os.Stderr, "Error loading .env:", err)
	}
}

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "db",
		Usage:       "path of the storage file",
		EnvVar:      "DB_PATH",
		Value:       "birthdays.db",
		Destination: &dbPath,
	},
	cli.StringFlag{
		Name:        "log-level",
		Usage:       "debug, info, warn or error",
		EnvVar:      "LOG_LEVEL",
		Value:       "info",
		Destination: &logLevel,
	},
	cli.BoolFlag{
		Name:        "log-dev",
		Usage:       "human readable log output",
		EnvVar:      "LOG_DEV",
		Destination: &logDev,
	},
	cli.StringFlag{
		Name:        "tz",
		Usage:       "time zone of the sending window and the daily schedule",
		EnvVar:      "TZ_NAME",
		Value:       "Local",
		Destination: &tzName,
	},
}

var serveFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "port, p",
		Usage:       "HTTP port",
		EnvVar:      "HTTP_PORT",
		Value:       "8080",
		Destination: &httpPort,
	},
	cli.StringFlag{
		Name:        "schedule, s",
		Usage:       "cron spec of the daily dispatch",
		EnvVar:      "SCHEDULE",
		Value:       "0 9 * * *",
		Destination: &schedule,
	},
	cli.BoolFlag{
		Name:        "run-on-start",
		Usage:       "dispatch once right after start",
		EnvVar:      "RUN_ON_START",
		Destination: &onStart,
	},
}

func main() {
	app := cli.App{
		Name:     "birthday-sender",
		HelpName: "birthday-sender",
		Usage:    "Sends birthday greetings and notifies peers over SMS",
		Flags:    globalFlags,
		Before: func(c *cli.Context) error {
			_, err := log.Init(logLevel, logDev)
			return err
		},
		Commands: []cli.Command{
			{
				Name:   "serve",
				Usage:  "run the daily schedule and the HTTP API",
				Flags:  serveFlags,
				Action: serve,
			},
			{
				Name:   "run",
				Usage:  "dispatch once and exit",
				Action: runOnce,
			},
			{
				Name:      "import",
				Usage:     "load birthday records from a JSON file",
				ArgsUsage: "<file>",
				Action:    importRecords,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, loc, closeDb, err := startEngine(ctx)
	if err != nil {
		return err
	}
	defer closeDb()

	sched := scheduler.New(schedule, loc, onStart, func(ctx context.Context) error {
		_, err := engine.Run(ctx)
		return err
	})
	if err = sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()
	zap.L().Info("Next dispatch", zap.Time("at", sched.Next()))

	//attach http handlers
	e := echo.New()
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.HideBanner = true
	e.Use(middleware.BodyLimit("2K"))

	bindRoutes(e, engine)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.WarnIfErr("Error stopping HTTP server", e.Shutdown(shutdownCtx))
	}()

	//start http server
	err = e.Start(":" + httpPort)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func runOnce(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, _, closeDb, err := startEngine(ctx)
	if err != nil {
		return err
	}
	defer closeDb()

	report, err := engine.Run(ctx)
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	return err
}

func importRecords(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("expected exactly one file", 2)
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	var records []model.BirthdayRecord
	if err = json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parsing records: %w", err)
	}

	db, err := dao.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	recordDao := dao.NewRecordDao(db)
	imported, updated := 0, 0
	for i := range records {
		created, err := recordDao.Upsert(&records[i])
		if err != nil {
			zap.L().Warn("Record skipped", zap.Int("index", i), zap.String("name", records[i].Name), zap.Error(err))
			continue
		}
		if created {
			imported++
		} else {
			updated++
		}
	}
	zap.L().Info("Records imported", zap.Int("imported", imported), zap.Int("updated", updated), zap.Int("total", len(records)))
	return nil
}

// startEngine opens the storage, connects to the SMSC and builds the dispatch engine
func startEngine(ctx context.Context) (service.Engine, *time.Location, func(), error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid time zone %q: %w", tzName, err)
	}
	clock := util.NewClock(loc)

	//create db client
	db, err := dao.Open(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDb := func() { log.WarnIfErr("Error closing db", db.Close()) }

	//create smpp client
	smppClient := sms.NewClient(util.GetEnv("SMS_IP", ""),
		util.GetEnvAsInt("SMS_PORT", 8018),
		util.GetEnv("SMS_ID", ""),
		util.GetEnv("SMS_PWD", ""),
		util.GetEnvAsInt("ENQ_LNK_SEC", 30),
		util.GetEnvAsInt("TRX_PER_SEC", 1))

	renderer, err := sms.NewRenderer()
	if err != nil {
		closeDb()
		return nil, nil, nil, err
	}
	smsSender := sms.NewSender(smppClient, renderer,
		util.GetEnv("SMS_SENDER", ""),
		util.GetEnvAsDuration("SUBMIT_TIMEOUT", 30*time.Second))

	//start sms sender
	if err = smsSender.Start(ctx); err != nil {
		closeDb()
		return nil, nil, nil, err
	}
	waitConnected(ctx, smppClient, 10*time.Second)

	engine, err := service.NewEngine(
		loadConfig(),
		service.Stores{
			Records: dao.NewRecordDao(db),
			Queue:   dao.NewQueueDao(db),
			Marks:   dao.NewSentMarkDao(db),
			Markers: dao.NewMarkerDao(db),
			Kv:      dao.NewKvDao(db),
		},
		smsSender,
		service.NewNotifier(util.GetEnv("WEB_HOOK", ""), clock),
		clock,
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)
	if err != nil {
		closeDb()
		return nil, nil, nil, err
	}
	return engine, loc, closeDb, nil
}

func loadConfig() service.Config {
	cfg := service.DefaultConfig()
	cfg.HourlyLimit = util.GetEnvAsInt("HOURLY_LIMIT", cfg.HourlyLimit)
	cfg.SendingWindowEndHour = util.GetEnvAsInt("SENDING_WINDOW_END_HOUR", cfg.SendingWindowEndHour)
	cfg.InterMessageDelay = util.GetEnvAsDuration("INTER_MESSAGE_DELAY", cfg.InterMessageDelay)
	cfg.MaxStudentPeers = util.GetEnvAsInt("MAX_STUDENT_PEERS", cfg.MaxStudentPeers)
	cfg.MaxStaffPeers = util.GetEnvAsInt("MAX_STAFF_PEERS", cfg.MaxStaffPeers)
	cfg.MaxHod = util.GetEnvAsInt("MAX_HOD", cfg.MaxHod)
	cfg.MaxRetries = util.GetEnvAsInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.BackoffBase = util.GetEnvAsDuration("BACKOFF_BASE", cfg.BackoffBase)
	cfg.BackoffCeilingAttempts = util.GetEnvAsInt("BACKOFF_CEILING_ATTEMPTS", cfg.BackoffCeilingAttempts)
	cfg.DrainBatch = util.GetEnvAsInt("DRAIN_BATCH", cfg.DrainBatch)
	cfg.PhoneMask = util.GetEnv("PHONE_MASK", cfg.PhoneMask)
	cfg.MarkerStoreDays = util.GetEnvAsInt("MARKER_STORE_DAYS", cfg.MarkerStoreDays)
	return cfg
}

func waitConnected(ctx context.Context, client sms.SmppClient, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for !client.IsConnected() && time.Now().Before(deadline) && ctx.Err() == nil {
		time.Sleep(200 * time.Millisecond)
	}
	if !client.IsConnected() {
		zap.L().Warn("SMSC is not connected yet, sends will be retried")
	}
}

func bindRoutes(e *echo.Echo, engine service.Engine) {

	e.POST("/runs", controller.GetRunFunc(engine))

	e.GET("/runs/last", controller.GetLastRunFunc(engine))

	e.GET("/queue", controller.GetQueueFunc(engine))
}
