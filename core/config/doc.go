// Package config provides configuration management for card-sync.
//
// It utilizes Viper for loading configuration from environment variables and an optional
// .env file. Defaults come from the `default` struct tags of every section.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, shutdown timeout)
//   - Database: document store connection (MySQL or SQLite)
//   - Storage: S3/MinIO credentials and bucket settings
//   - Log: Logging level and format
//   - Broker: RabbitMQ event publishing
//   - Catalog, Official: upstream card APIs
//   - Sync: batch sizes, checkpoint interval, execution budget, rate limit, retry and cache settings
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.BatchSize) // SYNC_BATCH_SIZE
package config
