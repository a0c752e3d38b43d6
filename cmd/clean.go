package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/anoixa/cat-catalog/database/models"
	"github.com/anoixa/cat-catalog/internal/app"
	"github.com/anoixa/cat-catalog/storage"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// cleanCmd 清理上传目录中没有记录引用的文件
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean orphan files in the upload directory",
	Long: `Clean orphan files in the upload directory.
A file is an orphan when no cat record references it, usually left behind
by an insert that failed after the image was written.
Files modified within --min-age are skipped, since a running server writes
the image before inserting its record.
Without --delete only a report is printed.`,
	Run: func(cmd *cobra.Command, args []string) {
		doDelete, _ := cmd.Flags().GetBool("delete")
		minAge, _ := cmd.Flags().GetDuration("min-age")

		if err := runClean(!doDelete, minAge); err != nil {
			log.Fatalf("Clean failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Bool("delete", false, "Actually delete orphan files (default is a dry run)")
	cleanCmd.Flags().Duration("min-age", defaultOrphanMinAge, "Skip files modified more recently than this")
}

// defaultOrphanMinAge 新写入的文件可能还在等待插入记录
const defaultOrphanMinAge = time.Hour

// uploadStore 需要能定位到磁盘文件以读取修改时间
type uploadStore interface {
	storage.Provider
	FilePath(name string) string
}

// cleanStats 清理统计信息
type cleanStats struct {
	scannedFiles int      // 上传目录中的文件数
	skippedNew   int      // 太新而跳过的文件数
	orphans      []string // 孤儿文件
	deleted      int      // 已删除的文件数
	errors       []string
}

// runClean 执行清理
func runClean(dryRun bool, minAge time.Duration) error {
	cfg := mustLoadConfig()

	container := app.NewContainer(cfg)
	if err := container.InitDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer container.Close()

	store, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		return err
	}

	stats, err := cleanOrphanFiles(context.Background(), container.GetDatabaseProvider().DB(), store, app.ImagePrefix, minAge, dryRun)
	if err != nil {
		return err
	}
	printCleanStats(stats, dryRun)

	if len(stats.errors) > 0 {
		return fmt.Errorf("encountered %d errors during cleanup", len(stats.errors))
	}
	return nil
}

// cleanOrphanFiles 找出没有记录引用且早于 minAge 的文件，dryRun 为 false 时删除
func cleanOrphanFiles(ctx context.Context, db *gorm.DB, store uploadStore, prefix string, minAge time.Duration, dryRun bool) (*cleanStats, error) {
	log.Println("Checking for orphan upload files...")

	var imagePaths []string
	if err := db.WithContext(ctx).Model(&models.Cat{}).Pluck("image_path", &imagePaths).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch image paths: %w", err)
	}

	prefix = strings.TrimSuffix(prefix, "/") + "/"
	referenced := make(map[string]struct{}, len(imagePaths))
	for _, p := range imagePaths {
		if strings.HasPrefix(p, prefix) {
			referenced[path.Base(p)] = struct{}{}
		}
	}

	files, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload files: %w", err)
	}

	cutoff := time.Now().Add(-minAge)
	stats := &cleanStats{scannedFiles: len(files)}
	for _, name := range files {
		if _, ok := referenced[name]; ok {
			continue
		}
		info, err := os.Stat(store.FilePath(name))
		if err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("stat %s: %v", name, err))
			continue
		}
		if info.ModTime().After(cutoff) {
			stats.skippedNew++
			continue
		}
		stats.orphans = append(stats.orphans, name)
		if dryRun {
			continue
		}
		if err := store.DeleteWithContext(ctx, name); err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("delete %s: %v", name, err))
			continue
		}
		stats.deleted++
	}
	return stats, nil
}

// printCleanStats 打印清理统计
func printCleanStats(stats *cleanStats, dryRun bool) {
	fmt.Println()
	fmt.Println("========================================")
	if dryRun {
		fmt.Println("           [DRY RUN MODE]")
	}
	fmt.Println("         Clean Statistics")
	fmt.Println("========================================")
	fmt.Printf("Upload files scanned:  %d\n", stats.scannedFiles)
	fmt.Printf("Recent files skipped:  %d\n", stats.skippedNew)
	fmt.Printf("Orphan files found:    %d\n", len(stats.orphans))
	fmt.Printf("Orphan files deleted:  %d\n", stats.deleted)
	fmt.Println("========================================")

	for _, name := range stats.orphans {
		fmt.Printf("  %s\n", name)
	}

	if len(stats.errors) > 0 {
		fmt.Println("\nErrors encountered:")
		for _, err := range stats.errors {
			fmt.Printf("  - %s\n", err)
		}
	}
}
