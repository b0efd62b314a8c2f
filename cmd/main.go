package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MGXlab/cirtap/config"
	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/mirror"
	"github.com/MGXlab/cirtap/model"
	"github.com/MGXlab/cirtap/notify"
	"github.com/MGXlab/cirtap/remote"
	"github.com/MGXlab/cirtap/state"
)

func main() {
	// Define CLI flags
	var (
		// Mirror flags
		dbDir            = flag.String("db-dir", "", "Destination root of the mirror (env: CIRTAP_DB_DIR)")
		cacheDir         = flag.String("cache-dir", "", "Run cache directory, default <db-dir>/.cache (env: CIRTAP_CACHE_DIR)")
		jobs             = flag.Int("jobs", 0, "Number of concurrent download workers (env: CIRTAP_JOBS)")
		resume           = flag.Bool("resume", false, "Skip directories already completed for the current release (env: CIRTAP_RESUME)")
		skipReleaseCheck = flag.Bool("skip-release-check", false, "Do not refresh RELEASE_NOTES before mirroring (env: CIRTAP_SKIP_RELEASE_CHECK)")
		forceCheck       = flag.Bool("force-check", false, "Mirror genome directories even when RELEASE_NOTES are unchanged (env: CIRTAP_FORCE_CHECK)")
		archiveNotes     = flag.Bool("archive-notes", false, "Archive existing RELEASE_NOTES before updating them (env: CIRTAP_ARCHIVE_NOTES)")

		// Logger flags
		logLevel = flag.String("log-level", "", "Log level: silent, error, warn, info, debug, verbose (env: CIRTAP_LOG_LEVEL)")
		logFile  = flag.String("log-file", "", "Also write logs to this file (env: CIRTAP_LOG_FILE)")

		// Remote flags
		remoteType = flag.String("remote-type", "", "Remote type: ftp, s3 (env: CIRTAP_REMOTE_TYPE)")
		timeout    = flag.Int("timeout", 0, "Remote operation timeout in seconds (env: CIRTAP_REMOTE_TIMEOUT_SECONDS)")
		maxRetries = flag.Int("max-retries", 0, "Max attempts per remote operation (env: CIRTAP_REMOTE_MAX_RETRIES)")
		maxRPS     = flag.Int("max-rps", -1, "Max requests per second to the remote (0 = no limit) (env: CIRTAP_REMOTE_MAX_RPS)")
		poolSize   = flag.Int("pool-size", 0, "Number of idle remote sessions to keep open (env: CIRTAP_REMOTE_POOL_SIZE)")

		// FTP flags
		ftpHost     = flag.String("ftp-host", "", "FTP server host (env: CIRTAP_FTP_HOST)")
		ftpPort     = flag.Int("ftp-port", 0, "FTP server port (env: CIRTAP_FTP_PORT)")
		ftpUsername = flag.String("ftp-username", "", "FTP username (env: CIRTAP_FTP_USERNAME)")
		ftpPassword = flag.String("ftp-password", "", "FTP password (env: CIRTAP_FTP_PASSWORD)")
		ftpBasePath = flag.String("ftp-base-path", "", "Path of the archive root on the server (env: CIRTAP_FTP_BASE_PATH)")
		ftpUseTLS   = flag.Bool("ftp-use-tls", false, "Use FTPS (env: CIRTAP_FTP_USE_TLS)")

		// S3 flags
		s3Region    = flag.String("s3-region", "", "S3 region (env: CIRTAP_S3_REGION)")
		s3Bucket    = flag.String("s3-bucket", "", "S3 bucket name (env: CIRTAP_S3_BUCKET)")
		s3AccessKey = flag.String("s3-access-key", "", "S3 access key ID (env: CIRTAP_S3_ACCESS_KEY_ID)")
		s3SecretKey = flag.String("s3-secret-key", "", "S3 secret access key (env: CIRTAP_S3_SECRET_ACCESS_KEY)")
		s3Endpoint  = flag.String("s3-endpoint", "", "S3 endpoint URL (env: CIRTAP_S3_ENDPOINT)")
		s3Prefix    = flag.String("s3-prefix", "", "Key prefix of the archive root (env: CIRTAP_S3_PREFIX)")

		// Cache flags
		cachePath   = flag.String("cache-path", "", "Path to the run cache database (env: CIRTAP_CACHE_PATH)")
		cacheBucket = flag.String("cache-bucket", "", "Run cache bucket name (env: CIRTAP_CACHE_BUCKET)")
		cacheNoSync = flag.Bool("cache-no-sync", false, "Disable fsync for the run cache (env: CIRTAP_CACHE_NO_SYNC)")

		// Notify flags
		notifyTo = flag.String("notify", "", "Comma-separated mail recipients for start/exit notifications (env: CIRTAP_NOTIFY)")

		// General flags
		showHelp = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// Load base configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config from environment: %v\n", err)
		os.Exit(1)
	}

	// Override with CLI flags if provided
	applyFlags(cfg, flagValues{
		dbDir:            *dbDir,
		cacheDir:         *cacheDir,
		jobs:             *jobs,
		resume:           *resume,
		skipReleaseCheck: *skipReleaseCheck,
		forceCheck:       *forceCheck,
		archiveNotes:     *archiveNotes,
		logLevel:         *logLevel,
		logFile:          *logFile,
		remoteType:       *remoteType,
		timeout:          *timeout,
		maxRetries:       *maxRetries,
		maxRPS:           *maxRPS,
		poolSize:         *poolSize,
		ftpHost:          *ftpHost,
		ftpPort:          *ftpPort,
		ftpUsername:      *ftpUsername,
		ftpPassword:      *ftpPassword,
		ftpBasePath:      *ftpBasePath,
		ftpUseTLS:        *ftpUseTLS,
		s3Region:         *s3Region,
		s3Bucket:         *s3Bucket,
		s3AccessKey:      *s3AccessKey,
		s3SecretKey:      *s3SecretKey,
		s3Endpoint:       *s3Endpoint,
		s3Prefix:         *s3Prefix,
		cachePath:        *cachePath,
		cacheBucket:      *cacheBucket,
		cacheNoSync:      *cacheNoSync,
		notifyTo:         *notifyTo,
	})
	cfg.ApplyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Starting PATRIC mirror")
	log.Debug("Configuration loaded and validated")

	// Initialize remote
	log.Debug("Initializing remote...")
	rm, err := remote.Create(&cfg.Remote, log)
	if err != nil {
		log.Error("Failed to create remote: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("Closing remote...")
		if err := rm.Close(); err != nil {
			log.Error("Error closing remote: %v", err)
		}
	}()
	log.Info("Remote initialized: type=%s", cfg.Remote.RemoteType)

	// Initialize run cache
	log.Debug("Opening run cache...")
	cache, err := state.OpenRunCache(&cfg.Cache)
	if err != nil {
		log.Error("Failed to open run cache: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("Closing run cache...")
		if err := cache.Close(); err != nil {
			log.Error("Error closing run cache: %v", err)
		}
	}()
	log.Info("Run cache ready: path=%s", cfg.Cache.Path)

	store := state.NewStore(log)
	notifier := notify.Create(&cfg.Notify, log)
	runner := mirror.NewRunner(cfg, rm, store, cache, notifier, log)

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	type runResult struct {
		outcome *model.RunOutcome
		err     error
	}
	resChan := make(chan runResult, 1)
	go func() {
		log.Info("Starting mirror run...")
		outcome, err := runner.Run(ctx)
		resChan <- runResult{outcome, err}
	}()

	// Wait for completion or interruption
	var res runResult
	select {
	case res = <-resChan:
	case sig := <-sigChan:
		log.Info("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
		res = <-resChan
	}

	if res.err != nil && res.err != context.Canceled {
		log.Error("Mirror run failed: %v", res.err)
		os.Exit(1)
	}
	if res.outcome != nil && res.outcome.HasFailures() {
		log.Error("Mirror run finished with %d failed directories", res.outcome.Failed)
		os.Exit(1)
	}
	log.Info("Mirror run completed successfully")
}

type flagValues struct {
	dbDir            string
	cacheDir         string
	jobs             int
	resume           bool
	skipReleaseCheck bool
	forceCheck       bool
	archiveNotes     bool
	logLevel         string
	logFile          string
	remoteType       string
	timeout          int
	maxRetries       int
	maxRPS           int
	poolSize         int
	ftpHost          string
	ftpPort          int
	ftpUsername      string
	ftpPassword      string
	ftpBasePath      string
	ftpUseTLS        bool
	s3Region         string
	s3Bucket         string
	s3AccessKey      string
	s3SecretKey      string
	s3Endpoint       string
	s3Prefix         string
	cachePath        string
	cacheBucket      string
	cacheNoSync      bool
	notifyTo         string
}

func applyFlags(cfg *config.AppConfig, flags flagValues) {
	// Mirror
	if flags.dbDir != "" {
		cfg.Mirror.DBDir = flags.dbDir
	}
	if flags.cacheDir != "" {
		cfg.Mirror.CacheDir = flags.cacheDir
	}
	if flags.jobs > 0 {
		cfg.Mirror.Jobs = flags.jobs
	}
	if flag.Lookup("resume").Value.String() == "true" {
		cfg.Mirror.Resume = flags.resume
	}
	if flag.Lookup("skip-release-check").Value.String() == "true" {
		cfg.Mirror.SkipReleaseCheck = flags.skipReleaseCheck
	}
	if flag.Lookup("force-check").Value.String() == "true" {
		cfg.Mirror.ForceCheck = flags.forceCheck
	}
	if flag.Lookup("archive-notes").Value.String() == "true" {
		cfg.Mirror.ArchiveNotes = flags.archiveNotes
	}

	// Logger
	if flags.logLevel != "" {
		cfg.Logger.Level = flags.logLevel
	}
	if flags.logFile != "" {
		cfg.Logger.File = flags.logFile
	}

	// Remote
	if flags.remoteType != "" {
		cfg.Remote.RemoteType = config.RemoteType(flags.remoteType)
	}
	if flags.timeout > 0 {
		cfg.Remote.Common.TimeoutSeconds = flags.timeout
	}
	if flags.maxRetries > 0 {
		cfg.Remote.Common.MaxRetries = flags.maxRetries
	}
	if flags.maxRPS >= 0 {
		// Allow 0 (no limit) to be explicitly set
		cfg.Remote.Common.MaxRPS = flags.maxRPS
	}
	if flags.poolSize > 0 {
		cfg.Remote.Common.PoolSize = flags.poolSize
	}

	// FTP
	if flags.ftpHost != "" {
		cfg.Remote.FTP.Host = flags.ftpHost
	}
	if flags.ftpPort > 0 {
		cfg.Remote.FTP.Port = flags.ftpPort
	}
	if flags.ftpUsername != "" {
		cfg.Remote.FTP.Username = flags.ftpUsername
	}
	if flags.ftpPassword != "" {
		cfg.Remote.FTP.Password = flags.ftpPassword
	}
	if flags.ftpBasePath != "" {
		cfg.Remote.FTP.BasePath = flags.ftpBasePath
	}
	if flag.Lookup("ftp-use-tls").Value.String() == "true" {
		cfg.Remote.FTP.UseTLS = flags.ftpUseTLS
	}

	// S3
	if flags.s3Region != "" {
		cfg.Remote.S3.Region = flags.s3Region
	}
	if flags.s3Bucket != "" {
		cfg.Remote.S3.Bucket = flags.s3Bucket
	}
	if flags.s3AccessKey != "" {
		cfg.Remote.S3.AccessKeyID = flags.s3AccessKey
	}
	if flags.s3SecretKey != "" {
		cfg.Remote.S3.SecretAccessKey = flags.s3SecretKey
	}
	if flags.s3Endpoint != "" {
		cfg.Remote.S3.Endpoint = flags.s3Endpoint
	}
	if flags.s3Prefix != "" {
		cfg.Remote.S3.Prefix = flags.s3Prefix
	}

	// Cache
	if flags.cachePath != "" {
		cfg.Cache.Path = flags.cachePath
	}
	if flags.cacheBucket != "" {
		cfg.Cache.Bucket = flags.cacheBucket
	}
	if flag.Lookup("cache-no-sync").Value.String() == "true" {
		cfg.Cache.NoSync = flags.cacheNoSync
	}

	// Notify
	if flags.notifyTo != "" {
		cfg.Notify.Recipients = config.SplitList(flags.notifyTo)
	}
}

func printHelp() {
	fmt.Println("cirtap - PATRIC genome archive mirror")
	fmt.Println()
	fmt.Println("Usage: cirtap [options]")
	fmt.Println()
	fmt.Println("Configuration can be provided via environment variables or command-line flags.")
	fmt.Println("Command-line flags take precedence over environment variables.")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Example:")
	fmt.Println("  cirtap --db-dir=/data/patric --jobs=4")
	fmt.Println("  cirtap --db-dir=/data/patric --jobs=4 --resume")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  CIRTAP_DB_DIR                 - Destination root of the mirror")
	fmt.Println("  CIRTAP_CACHE_DIR              - Run cache directory")
	fmt.Println("  CIRTAP_JOBS                   - Number of concurrent download workers")
	fmt.Println("  CIRTAP_RESUME                 - Skip already completed directories (true/false)")
	fmt.Println("  CIRTAP_SKIP_RELEASE_CHECK     - Do not refresh RELEASE_NOTES (true/false)")
	fmt.Println("  CIRTAP_FORCE_CHECK            - Mirror even when notes are unchanged (true/false)")
	fmt.Println("  CIRTAP_ARCHIVE_NOTES          - Archive notes before updating (true/false)")
	fmt.Println("  CIRTAP_LOG_LEVEL              - Log level (silent, error, warn, info, debug, verbose)")
	fmt.Println("  CIRTAP_LOG_FILE               - Also write logs to this file")
	fmt.Println("  CIRTAP_REMOTE_TYPE            - Remote type (ftp, s3)")
	fmt.Println("  CIRTAP_REMOTE_TIMEOUT_SECONDS - Remote operation timeout in seconds")
	fmt.Println("  CIRTAP_REMOTE_MAX_RETRIES     - Max attempts per remote operation")
	fmt.Println("  CIRTAP_REMOTE_MAX_RPS         - Max requests per second (0 = no limit)")
	fmt.Println("  CIRTAP_REMOTE_POOL_SIZE       - Idle remote sessions to keep open")
	fmt.Println("  CIRTAP_FTP_HOST               - FTP server host")
	fmt.Println("  CIRTAP_FTP_PORT               - FTP server port")
	fmt.Println("  CIRTAP_FTP_USERNAME           - FTP username")
	fmt.Println("  CIRTAP_FTP_PASSWORD           - FTP password")
	fmt.Println("  CIRTAP_FTP_BASE_PATH          - Path of the archive root on the server")
	fmt.Println("  CIRTAP_FTP_USE_TLS            - Use FTPS (true/false)")
	fmt.Println("  CIRTAP_S3_REGION              - S3 region")
	fmt.Println("  CIRTAP_S3_BUCKET              - S3 bucket name")
	fmt.Println("  CIRTAP_S3_ACCESS_KEY_ID       - S3 access key ID")
	fmt.Println("  CIRTAP_S3_SECRET_ACCESS_KEY   - S3 secret access key")
	fmt.Println("  CIRTAP_S3_ENDPOINT            - S3 endpoint URL")
	fmt.Println("  CIRTAP_S3_PREFIX              - Key prefix of the archive root")
	fmt.Println("  CIRTAP_CACHE_PATH             - Path to the run cache database")
	fmt.Println("  CIRTAP_CACHE_BUCKET           - Run cache bucket name")
	fmt.Println("  CIRTAP_CACHE_NO_SYNC          - Disable fsync for the run cache (true/false)")
	fmt.Println("  CIRTAP_NOTIFY                 - Comma-separated mail recipients")
	fmt.Println("  CIRTAP_SMTP_HOST              - SMTP host for notifications")
	fmt.Println("  CIRTAP_SMTP_PORT              - SMTP port for notifications")
	fmt.Println("  CIRTAP_SMTP_FROM              - Sender address for notifications")
}
