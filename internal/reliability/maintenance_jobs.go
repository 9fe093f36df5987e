package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/quantstack/stresslab/internal/database"
	"github.com/quantstack/stresslab/internal/modules/marketdata"
)

// DailyMaintenanceJob runs the nightly database maintenance pass: integrity
// checks, WAL checkpoints and a disk space check.
type DailyMaintenanceJob struct {
	databases map[string]*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates the nightly maintenance job.
func NewDailyMaintenanceJob(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the nightly maintenance pass.
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for name, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			// A corrupt run history cannot be silently repaired.
			j.log.Error().Err(err).Str("database", name).Msg("Database health check failed")
			return fmt.Errorf("health check failed for %s: %w", name, err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			// Not critical, the next checkpoint will catch up.
			j.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed")
	return nil
}

// checkDiskSpace warns on low disk and fails hard when the data volume is
// nearly full, before a mid-write ENOSPC can corrupt the WAL.
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat data volume: %w", err)
	}

	freeGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("free_gb", freeGB).Msg("Disk space check")

	if freeGB < 0.5 {
		return fmt.Errorf("only %.2f GB free on data volume", freeGB)
	}
	if freeGB < 5.0 {
		j.log.Warn().Float64("free_gb", freeGB).Msg("Disk space running low")
	}
	return nil
}

// CacheSweepJob deletes expired sector-lookup cache entries.
type CacheSweepJob struct {
	cacheRepo *marketdata.SectorCacheRepository
	log       zerolog.Logger
}

// NewCacheSweepJob creates the cache sweep job.
func NewCacheSweepJob(cacheRepo *marketdata.SectorCacheRepository, log zerolog.Logger) *CacheSweepJob {
	return &CacheSweepJob{
		cacheRepo: cacheRepo,
		log:       log.With().Str("job", "cache_sweep").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *CacheSweepJob) Name() string {
	return "cache_sweep"
}

// Run removes expired sector cache rows.
func (j *CacheSweepJob) Run() error {
	removed, err := j.cacheRepo.DeleteExpired()
	if err != nil {
		return fmt.Errorf("cache sweep failed: %w", err)
	}

	j.log.Info().Int64("removed", removed).Msg("Sector cache sweep completed")
	return nil
}

// CloudBackupJob runs the weekly backup-and-rotate cycle.
type CloudBackupJob struct {
	backupService *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewCloudBackupJob creates the weekly cloud backup job.
func NewCloudBackupJob(backupService *BackupService, retentionDays int, log zerolog.Logger) *CloudBackupJob {
	return &CloudBackupJob{
		backupService: backupService,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "cloud_backup").Logger(),
	}
}

// Name returns the job name for the scheduler.
func (j *CloudBackupJob) Name() string {
	return "cloud_backup"
}

// Run creates and uploads a backup, then rotates old ones. Backup failures
// are job failures but never take the service down.
func (j *CloudBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if err := j.backupService.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.backupService.RotateOldBackups(ctx, j.retentionDays)
}
