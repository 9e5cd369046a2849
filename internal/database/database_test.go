package database_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/database"
	"github.com/frahmantamala/kakeibo/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func sqliteConfig(source string) internal.DatabaseConfig {
	return internal.DatabaseConfig{
		Driver:          database.DriverSQLite,
		Source:          source,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute,
	}
}

func tableExists(db *gorm.DB, name string) bool {
	var count int64
	Expect(db.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count).Error).To(Succeed())
	return count == 1
}

var _ = Describe("Database", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Open", func() {
		It("creates the parent directory of a sqlite file", func() {
			dir := filepath.Join(GinkgoT().TempDir(), "nested", "data")
			db, err := database.Open(sqliteConfig(filepath.Join(dir, "expenses.db")))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() {
				sqlDB, _ := db.DB()
				_ = sqlDB.Close()
			})

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("rejects unknown drivers", func() {
			cfg := sqliteConfig(":memory:")
			cfg.Driver = "oracle"
			_, err := database.Open(cfg)
			Expect(err).To(MatchError(ContainSubstring("unsupported database driver")))
		})
	})

	Describe("Migrate", func() {
		var db *gorm.DB

		BeforeEach(func() {
			var err error
			db, err = database.Open(sqliteConfig(":memory:"))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() {
				sqlDB, _ := db.DB()
				_ = sqlDB.Close()
			})
		})

		It("creates the users and expenses tables", func() {
			sqlDB, err := db.DB()
			Expect(err).NotTo(HaveOccurred())

			Expect(database.Migrate(ctx, sqlDB, database.DriverSQLite, false, logger.Discard())).To(Succeed())
			Expect(tableExists(db, "users")).To(BeTrue())
			Expect(tableExists(db, "expenses")).To(BeTrue())
		})

		It("is idempotent", func() {
			sqlDB, _ := db.DB()
			Expect(database.Migrate(ctx, sqlDB, database.DriverSQLite, false, logger.Discard())).To(Succeed())
			Expect(database.Migrate(ctx, sqlDB, database.DriverSQLite, false, logger.Discard())).To(Succeed())
		})

		It("rolls back the latest migration", func() {
			sqlDB, _ := db.DB()
			Expect(database.Migrate(ctx, sqlDB, database.DriverSQLite, false, logger.Discard())).To(Succeed())
			Expect(database.Migrate(ctx, sqlDB, database.DriverSQLite, true, logger.Discard())).To(Succeed())

			Expect(tableExists(db, "expenses")).To(BeFalse())
			Expect(tableExists(db, "users")).To(BeTrue())
		})
	})

	Describe("SQLXDriverName", func() {
		It("maps config drivers to database/sql driver names", func() {
			Expect(database.SQLXDriverName("postgres")).To(Equal("pgx"))
			Expect(database.SQLXDriverName("sqlite")).To(Equal("sqlite3"))
		})
	})
})
