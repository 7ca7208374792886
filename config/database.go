package config

import (
	"fmt"

	"github.com/Anandhu-731/BookNest/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB initializes the database connection and migrates the payment schema.
func InitDB() {
	config, err := LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.DBHost, config.DBPort, config.DBUser, config.DBPassword, config.DBName)

	// TranslateError maps the Postgres unique violation on
	// payments.transaction_id to gorm.ErrDuplicatedKey, which the ledger
	// relies on for idempotent settlement application.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}

	DB = db

	err = DB.AutoMigrate(
		&models.Booking{},
		&models.GatewayBill{},
		&models.Payment{},
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to migrate database: %v", err))
	}

	ensureTransactionIDUnique()
}

// ensureTransactionIDUnique verifies the unique index on
// payments.transaction_id survived past schema changes. Databases migrated
// before the index existed would silently allow duplicate settlements.
func ensureTransactionIDUnique() {
	var indexExists bool
	err := DB.Raw(`
		SELECT EXISTS (
			SELECT 1
			FROM pg_indexes
			WHERE tablename = 'payments'
			AND indexname = 'idx_payments_transaction_id'
		)
	`).Scan(&indexExists).Error
	if err != nil {
		panic(fmt.Sprintf("Failed to check transaction_id index: %v", err))
	}

	if !indexExists {
		err = DB.Exec(`CREATE UNIQUE INDEX idx_payments_transaction_id ON payments (transaction_id)`).Error
		if err != nil {
			panic(fmt.Sprintf("Failed to create transaction_id index: %v", err))
		}
	}
}
