// Creates the gateway tables. Uses gorm AutoMigrate so the schema stays in
// lockstep with the model structs.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/wallet"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		log.Fatal("DATABASE_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&orders.Order{},
		&orders.OrderItem{},
		&orders.PaymentInstrument{},
		&orders.PaymentTransaction{},
		&orders.OrderNote{},
		&wallet.StoredCard{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate tables: %v", err)
	}

	log.Println("✓ gateway tables migrated")
}
