// Package app wires configuration, storage and AWS adapters into the
// services shared by the server, worker and birthdayctl binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/akashvim3/Birthday-Wishes-System/internal/assistant"
	"github.com/akashvim3/Birthday-Wishes-System/internal/awsclient"
	"github.com/akashvim3/Birthday-Wishes-System/internal/config"
	"github.com/akashvim3/Birthday-Wishes-System/internal/media"
	"github.com/akashvim3/Birthday-Wishes-System/internal/notify"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/backoff"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/lease"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
	"github.com/akashvim3/Birthday-Wishes-System/internal/repository/dynamo"
	"github.com/akashvim3/Birthday-Wishes-System/internal/repository/postgres"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/birthday"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/group"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/jobs"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/notification"
	"github.com/akashvim3/Birthday-Wishes-System/internal/service/wish"
)

// App holds the wired services. Close releases the connections it opened.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Redis    *redis.Client
	Location *time.Location

	Birthdays  *birthday.Service
	Wishes     *wish.Service
	Groups     *group.Service
	Dispatcher *notification.Scheduler
	Intents    *postgres.IntentRepo
	Runner     *jobs.Runner
	Assistant  *assistant.Assistant

	// Notifier is nil when neither SES nor a dispatch queue is configured.
	Notifier notification.Notifier
}

// New opens the database (and Redis when configured), builds the AWS
// adapters the config enables, and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.RedactPII)

	loc, err := cfg.Jobs.Location()
	if err != nil {
		return nil, fmt.Errorf("jobs timezone: %w", err)
	}

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db, Location: loc}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, leases use postgres advisory locks", "error", err)
			_ = a.Redis.Close()
			a.Redis = nil
		}
	}

	awsCfg, err := awsclient.Load(ctx, awsclient.Options{
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKey,
		SecretKey: cfg.AWS.SecretKey,
		Profile:   cfg.AWS.Profile,
		Endpoint:  cfg.AWS.Endpoint,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.wire(awsCfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(awsCfg aws.Config) error {
	cfg := a.Config
	profiles := postgres.NewProfileRepo(a.DB)
	wishRepo := postgres.NewWishRepo(a.DB)
	queue := postgres.NewDispatchRepo(a.DB)

	notifier, err := buildNotifier(cfg, awsCfg, profiles)
	if err != nil {
		return err
	}
	a.Notifier = notifier

	wishOpts := []wish.Option{wish.WithEnqueuer(queue)}
	if notifier != nil {
		wishOpts = append(wishOpts, wish.WithNotifier(notifier))
	}
	a.Wishes = wish.NewService(wishRepo, wishOpts...)
	a.Birthdays = birthday.NewService(profiles)
	a.Groups = group.NewService(postgres.NewGroupRepo(a.DB), nil)

	if notifier != nil {
		a.Dispatcher = notification.NewScheduler(queue, a.Wishes, notifier, notification.Config{
			Workers:         cfg.Scheduler.Workers,
			BatchSize:       cfg.Scheduler.BatchSize,
			PollInterval:    cfg.Scheduler.PollInterval(),
			NotifierTimeout: cfg.Scheduler.NotifierTimeout(),
			Retry: backoff.Policy{
				Attempts: cfg.Scheduler.RetryAttempts,
				Base:     cfg.Scheduler.RetryBase(),
				Max:      cfg.Scheduler.RetryMax(),
			},
		})
	}

	a.Intents = postgres.NewIntentRepo(a.DB)
	var intents jobs.IntentSink = a.Intents
	if cfg.Queue.IntentsURL != "" {
		pub := notify.NewIntentPublisher(sqs.NewFromConfig(awsCfg), cfg.Queue.IntentsURL)
		intents = notify.NewIntentSink(a.Intents, pub)
	}

	// Left as untyped nil unless enabled so weekly cleanup is not registered.
	var store jobs.MediaStore
	if cfg.Media.Enabled {
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = cfg.Media.UsePathStyle })
		store = media.NewS3Store(client, cfg.Media.Bucket, cfg.Media.Prefix)
	}
	handlers := jobs.NewHandlers(a.Birthdays, intents, store, wishRepo)

	var marks jobs.WatermarkStore = postgres.NewWatermarkRepo(a.DB)
	if cfg.Watermarks.Backend == "dynamodb" {
		marks = dynamo.NewWatermarkStore(dynamodb.NewFromConfig(awsCfg), cfg.Watermarks.DynamoTable)
	}

	a.Runner = jobs.NewRunner(marks, lease.NewManager(a.Redis, a.DB), a.Location)
	a.Runner.SetLeaseTTL(cfg.Jobs.LeaseTTL())
	a.Runner.SetInterval(cfg.Jobs.TickInterval())
	schedule, err := standardSchedule(cfg.Jobs)
	if err != nil {
		return err
	}
	jobs.RegisterStandard(a.Runner, handlers, schedule)

	var responder assistant.Responder
	if cfg.Bedrock.Enabled {
		responder = assistant.NewBedrockResponder(bedrockruntime.NewFromConfig(awsCfg), cfg.Bedrock.ModelID, cfg.Bedrock.MaxTokens)
	}
	a.Assistant = assistant.New(responder)
	a.Assistant.SetTimeout(cfg.Bedrock.Timeout())
	return nil
}

// buildNotifier prefers the dispatch queue over direct SES email; it returns
// nil when neither is configured.
func buildNotifier(cfg *config.Config, awsCfg aws.Config, profiles notify.ProfileGetter) (notification.Notifier, error) {
	switch {
	case cfg.Queue.DispatchURL != "":
		return notify.NewQueueNotifier(sqs.NewFromConfig(awsCfg), cfg.Queue.DispatchURL), nil
	case cfg.SES.Enabled:
		n, err := notify.NewEmailNotifier(sesv2.NewFromConfig(awsCfg), profiles, notify.EmailConfig{
			FromEmail:        cfg.SES.FromEmail,
			FromName:         cfg.SES.FromName,
			ConfigurationSet: cfg.SES.ConfigurationSet,
			SubjectTemplate:  cfg.SES.SubjectTemplate,
			HTMLTemplate:     cfg.SES.HTMLTemplate,
			TextTemplate:     cfg.SES.TextTemplate,
		})
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		return n, nil
	}
	return nil, nil
}

func standardSchedule(c config.JobsConfig) (jobs.Schedule, error) {
	detect, err := config.ParseClock(c.DetectionAt)
	if err != nil {
		return jobs.Schedule{}, fmt.Errorf("detection_at: %w", err)
	}
	remind, err := config.ParseClock(c.ReminderAt)
	if err != nil {
		return jobs.Schedule{}, fmt.Errorf("reminder_at: %w", err)
	}
	cleanup, err := config.ParseClock(c.CleanupAt)
	if err != nil {
		return jobs.Schedule{}, fmt.Errorf("cleanup_at: %w", err)
	}
	return jobs.Schedule{
		DetectionAt:   detect,
		ReminderAt:    remind,
		CleanupDay:    c.Weekday(),
		CleanupAt:     cleanup,
		RetentionDays: c.RetentionDays,
	}, nil
}

// OpenDB opens and pings the Postgres pool.
func OpenDB(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", c.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	db.SetConnMaxLifetime(c.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
