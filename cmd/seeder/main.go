// cmd/seeder/main.go
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Seeds a demo campaign with two profiles and a handful of drives.
func main() {
	dsn := os.Getenv("DATABASE_URL")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	campaignID := uuid.New()
	_, err = db.Exec(`
        INSERT INTO campaigns (id, name, client_name, description, status, target_drive_count, notes, created_at)
        VALUES ($1, 'Q4 Physical Assessment', 'Acme Corp', 'USB drop across HQ and two branch offices', 'active', 10, '', NOW())`,
		campaignID,
	)
	if err != nil {
		log.Fatalf("failed to seed campaign: %v", err)
	}

	profiles := []struct {
		name       string
		scenario   string
		tokenTypes []string
	}{
		{"HR Documents", "hr", []string{"dns", "word", "excel", "folder"}},
		{"IT Backup", "it", []string{"dns", "pdf", "qr"}},
	}

	profileIDs := make([]uuid.UUID, 0, len(profiles))
	for _, p := range profiles {
		id := uuid.New()
		_, err = db.Exec(`
            INSERT INTO profiles (id, name, description, scenario_type, theme, token_types, created_at)
            VALUES ($1, $2, '', $3, '', $4, NOW())`,
			id, p.name, p.scenario, pq.Array(p.tokenTypes),
		)
		if err != nil {
			log.Fatalf("failed to seed profile %s: %v", p.name, err)
		}
		profileIDs = append(profileIDs, id)
	}

	labels := []string{"HR Backup 2025", "Payroll Q4", "IT Recovery", "Confidential", "Board Materials"}
	for i, label := range labels {
		profileID := profileIDs[i%len(profileIDs)]
		code := fmt.Sprintf("USB-SEED%02d", i+1)
		_, err = db.Exec(`
            INSERT INTO drives (id, campaign_id, profile_id, code, label, notes, status, created_at)
            VALUES ($1, $2, $3, $4, $5, '', 'created', NOW())`,
			uuid.New(), campaignID, profileID, code, label,
		)
		if err != nil {
			log.Fatalf("failed to seed drive %s: %v", code, err)
		}
		fmt.Printf("Seeded drive: %s (%s)\n", code, label)
	}

	fmt.Println("Database seeding completed successfully!")
}
