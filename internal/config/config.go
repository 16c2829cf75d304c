package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the orchestrator needs, resolved once at
// startup. Components receive it explicitly and must not consult the
// process environment themselves.
type Config struct {
	// BackupRoot is the directory that owns the snapshot tree.
	BackupRoot string

	// ServicesRoot and AppsRoot are the two instance namespaces.
	ServicesRoot string
	AppsRoot     string

	// CoolifyRoot is the platform data directory backed up by setup-backup.
	CoolifyRoot string

	// RetentionDays is the default snapshot retention window.
	RetentionDays int
	// FilesRetentionDays is the longer window applied to snapshots that
	// contain bulk file archives.
	FilesRetentionDays int

	// Remote sync settings. RemoteBackend selects the backend: "rsync",
	// "minio" or "s3". Empty means remote sync is disabled.
	RemoteBackend string
	RsyncTarget   string

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	S3Prefix    string

	// Notification endpoints. Empty values disable the corresponding sink.
	WebhookURL     string
	HealthcheckURL string

	// SkipPreRestoreBackup disables the safety snapshot before restores.
	SkipPreRestoreBackup bool

	Verbose bool
}

// Load builds the configuration from the orchestrator's own .env file (if
// present), the process environment and any viper-bound flags. Later calls
// see the same values; the returned struct is never mutated afterwards.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.GetViper()
	v.AutomaticEnv()

	v.SetDefault("BACKUP_DIR", "/data/coolify-backups")
	v.SetDefault("SERVICES_DIR", "/data/coolify/services")
	v.SetDefault("APPLICATIONS_DIR", "/data/coolify/applications")
	v.SetDefault("COOLIFY_DIR", "/data/coolify")
	v.SetDefault("RETENTION_DAYS", 7)
	v.SetDefault("FILES_RETENTION_DAYS", 30)
	v.SetDefault("S3_USE_SSL", true)

	cfg := &Config{
		BackupRoot:           v.GetString("BACKUP_DIR"),
		ServicesRoot:         v.GetString("SERVICES_DIR"),
		AppsRoot:             v.GetString("APPLICATIONS_DIR"),
		CoolifyRoot:          v.GetString("COOLIFY_DIR"),
		RetentionDays:        v.GetInt("RETENTION_DAYS"),
		FilesRetentionDays:   v.GetInt("FILES_RETENTION_DAYS"),
		RemoteBackend:        strings.ToLower(v.GetString("REMOTE_BACKEND")),
		RsyncTarget:          v.GetString("RSYNC_TARGET"),
		S3Endpoint:           v.GetString("S3_ENDPOINT"),
		S3Bucket:             v.GetString("S3_BUCKET"),
		S3AccessKey:          v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:          v.GetString("S3_SECRET_KEY"),
		S3Region:             v.GetString("S3_REGION"),
		S3UseSSL:             v.GetBool("S3_USE_SSL"),
		S3Prefix:             v.GetString("S3_PREFIX"),
		WebhookURL:           v.GetString("WEBHOOK_URL"),
		HealthcheckURL:       v.GetString("HEALTHCHECK_URL"),
		SkipPreRestoreBackup: v.GetBool("SKIP_PRE_RESTORE_BACKUP"),
		Verbose:              v.GetBool("verbose"),
	}

	// Backward-compat: legacy installs configured only RSYNC_TARGET, which
	// implies the rsync backend.
	if cfg.RemoteBackend == "" && cfg.RsyncTarget != "" {
		cfg.RemoteBackend = "rsync"
	}
	if cfg.RemoteBackend == "" && cfg.S3Bucket != "" {
		cfg.RemoteBackend = "minio"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BackupRoot == "" {
		return fmt.Errorf("BACKUP_DIR must not be empty")
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("RETENTION_DAYS must be at least 1, got %d", c.RetentionDays)
	}
	if c.FilesRetentionDays < c.RetentionDays {
		return fmt.Errorf("FILES_RETENTION_DAYS (%d) must not be shorter than RETENTION_DAYS (%d)",
			c.FilesRetentionDays, c.RetentionDays)
	}
	switch c.RemoteBackend {
	case "", "rsync", "minio", "s3":
	default:
		return fmt.Errorf("unknown REMOTE_BACKEND %q (expected rsync, minio or s3)", c.RemoteBackend)
	}
	if c.RemoteBackend == "rsync" && c.RsyncTarget == "" {
		return fmt.Errorf("REMOTE_BACKEND=rsync requires RSYNC_TARGET")
	}
	if (c.RemoteBackend == "minio" || c.RemoteBackend == "s3") && c.S3Bucket == "" {
		return fmt.Errorf("REMOTE_BACKEND=%s requires S3_BUCKET", c.RemoteBackend)
	}
	return nil
}

// ServicesBackupDir returns the snapshot root for the service namespace.
func (c *Config) ServicesBackupDir() string {
	return filepath.Join(c.BackupRoot, "services")
}

// AppsBackupDir returns the snapshot root for the application namespace.
func (c *Config) AppsBackupDir() string {
	return filepath.Join(c.BackupRoot, "apps")
}

// SetupBackupDir returns the snapshot root for platform setup backups.
func (c *Config) SetupBackupDir() string {
	return filepath.Join(c.BackupRoot, "coolify-setup")
}

// PreRestoreDir returns the root for pre-restore safety snapshots.
func (c *Config) PreRestoreDir() string {
	return filepath.Join(c.BackupRoot, "pre-restore")
}
