package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// dsn builds the go-sql-driver DSN from the output settings.
func (store *MySQLStore) dsn() string {
	cfg := store.Settings.Output.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	cfg := store.Settings.Output.MySQL
	log := GetLogger().Module("mysql")

	db, err := gorm.Open(mysql.Open(store.dsn()), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		log.Error("Failed to open MySQL database",
			logger.String("host", cfg.Host),
			logger.String("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Error(err))
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open_mysql").
			Context("host", cfg.Host).
			Build()
	}

	store.DB = db
	log.Info("MySQL training run store opened",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database))
	return performAutoMigration(db, "MySQL", store.metrics)
}

// Close closes the MySQL database connection.
func (store *MySQLStore) Close() error {
	return closeDB(store.DB)
}
