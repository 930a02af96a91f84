package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glowdesk/glowdesk/internal/app"
	"github.com/glowdesk/glowdesk/internal/customers"
	"github.com/glowdesk/glowdesk/internal/freebies"
	"github.com/glowdesk/glowdesk/internal/platform/cache"
	"github.com/glowdesk/glowdesk/internal/products"
	"github.com/glowdesk/glowdesk/internal/purchases"
	"github.com/glowdesk/glowdesk/internal/shared"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisClient.Close()

	store, err := app.OpenStore(ctx, cfg, redisClient, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	svcs := app.NewServices(app.ServiceDeps{Config: cfg, Store: store, Redis: redisClient, Logger: logger})

	fmt.Println("→ Seeding admin user...")
	email := getenv("SEED_ADMIN_EMAIL", "admin@glowdesk.local")
	if _, err := svcs.Auth.CreateUser(ctx, email, getenv("SEED_ADMIN_PASSWORD", "glowdesk123"), "Admin"); err != nil {
		if !errors.Is(err, shared.ErrConflict) {
			log.Fatalf("seed user: %v", err)
		}
		fmt.Println("  admin already present")
	}

	fmt.Println("→ Seeding products...")
	catalog := []products.Product{
		{Name: "Rose Soap", Variant: "100g", Category: "Soap", Price: 120, Qty: 40},
		{Name: "Aloe Gel", Variant: "50ml", Category: "Skin", Price: 250, Qty: 12},
		{Name: "Hair Oil", Variant: "200ml", Category: "Hair", Price: 320, Qty: 4},
	}
	var seeded []products.Product
	for _, p := range catalog {
		created, err := svcs.Products.Create(ctx, p)
		if err != nil {
			log.Fatalf("seed product %s: %v", p.Name, err)
		}
		seeded = append(seeded, created)
	}

	fmt.Println("→ Seeding freebies...")
	sachet, err := svcs.Freebies.Create(ctx, freebies.Freebie{Name: "Herbal Sachet", Blend: []string{"neem", "tulsi"}, Value: 30, AvailableQty: 25})
	if err != nil {
		log.Fatalf("seed freebie: %v", err)
	}

	fmt.Println("→ Seeding customers...")
	people := []customers.Customer{
		{FirstName: "Asha", LastName: "Rao", Phone: "9876543210", City: "Pune", Pincode: "411001", SkinType: "Dry"},
		{FirstName: "Meera", LastName: "Iyer", Phone: "9876543211", City: "Chennai", Pincode: "600001", HairType: "Curly"},
	}
	var buyers []customers.Customer
	for _, c := range people {
		created, err := svcs.Customers.Create(ctx, c)
		if err != nil {
			log.Fatalf("seed customer %s: %v", c.FirstName, err)
		}
		buyers = append(buyers, created)
	}

	fmt.Println("→ Seeding purchases...")
	date := time.Now().UTC().AddDate(0, 0, -3)
	_, err = svcs.Purchases.Create(ctx, purchases.CreatePurchaseRequest{
		CustomerID: buyers[0].ID,
		Products: []purchases.LineItemInput{
			{ProductID: seeded[0].ID, Name: seeded[0].Name, Variant: seeded[0].Variant, Price: &seeded[0].Price, Qty: 2},
			{ProductID: seeded[1].ID, Name: seeded[1].Name, Variant: seeded[1].Variant, Price: &seeded[1].Price, Qty: 1},
		},
		FreebieID:    sachet.ID,
		PurchaseDate: &date,
	}, "")
	if err != nil {
		log.Fatalf("seed purchase: %v", err)
	}

	fmt.Println("✓ Seed complete")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
