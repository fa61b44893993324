package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/edu-patrimonio/workorder-service/internal/auth"
	"github.com/edu-patrimonio/workorder-service/internal/config"
)

// Hashes a tenant intake key for the anonymous QR intake endpoint.
// The printed statement is applied by hand when a school is onboarded or
// its key rotates; the service itself never writes tenant_intake_keys.
func main() {
	tenantID := flag.String("tenant", "", "tenant id the key belongs to")
	key := flag.String("key", "", "intake key as printed on the asset tag posters")
	flag.Parse()

	if *tenantID == "" || *key == "" {
		log.Fatal("usage: intakekey -tenant <tenant-id> -key <intake-key>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	hashed, err := auth.HashIntakeKey(*key, cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatalf("hash intake key: %v", err)
	}

	fmt.Printf("INSERT INTO tenant_intake_keys (tenant_id, key_hash) VALUES ('%s', '%s')\n", *tenantID, hashed)
	fmt.Printf("    ON CONFLICT (tenant_id) DO UPDATE SET key_hash = EXCLUDED.key_hash;\n")
}
