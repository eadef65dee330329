package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/sling-api/internal/config"
	"github.com/yourusername/sling-api/internal/domain/entity"
	pgRepo "github.com/yourusername/sling-api/internal/repository/postgres"
	"github.com/yourusername/sling-api/pkg/database"
)

// Seed tool: applies migrations and imports communities and bets from an
// xlsx workbook. Expected sheets:
//
//	Communities: public_id | name | description | owner_email
//	Bets:        public_id | community_public_id | title | description | stake | status
//
// The first row of each sheet is a header and is skipped.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	xlsxPath := flag.String("xlsx", "", "path to seed workbook (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	connStr := cfg.Database.PostgresConnectionString()
	if err := runMigrations(connStr); err != nil {
		log.Printf("Migrations failed: %v", err)
		os.Exit(1)
	}
	log.Println("Migrations applied")

	if *xlsxPath == "" {
		log.Println("No workbook given, nothing to import")
		return
	}

	db, err := database.NewPostgresDB(connStr)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	f, err := excelize.OpenFile(*xlsxPath)
	if err != nil {
		log.Printf("Failed to open workbook %s: %v", *xlsxPath, err)
		os.Exit(1)
	}
	defer f.Close()

	communityRepo := pgRepo.NewCommunityRepo(db)
	betRepo := pgRepo.NewBetRepo(db)
	userRepo := pgRepo.NewUserRepo(db)

	imported, err := importCommunities(f, communityRepo, userRepo)
	if err != nil {
		log.Printf("Community import failed: %v", err)
		os.Exit(1)
	}
	log.Printf("Imported %d communities", imported)

	imported, err = importBets(f, betRepo, communityRepo)
	if err != nil {
		log.Printf("Bet import failed: %v", err)
		os.Exit(1)
	}
	log.Printf("Imported %d bets", imported)
}

func runMigrations(connStr string) error {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func importCommunities(f *excelize.File, communityRepo *pgRepo.CommunityRepo, userRepo *pgRepo.UserRepo) (int, error) {
	rows, err := f.GetRows("Communities")
	if err != nil {
		log.Printf("No Communities sheet, skipping: %v", err)
		return 0, nil
	}

	count := 0
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		community := &entity.Community{
			PublicID: strings.TrimSpace(row[0]),
			Name:     strings.TrimSpace(row[1]),
		}
		if len(row) > 2 {
			community.Description = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			ownerEmail := strings.TrimSpace(row[3])
			if ownerEmail != "" {
				owner, err := userRepo.GetByEmail(ownerEmail)
				if err != nil {
					log.Printf("Row %d: owner %s not found, leaving community unowned", i+1, ownerEmail)
				} else {
					community.OwnerID = owner.ID
				}
			}
		}
		if community.PublicID == "" || community.Name == "" {
			log.Printf("Row %d: missing public_id or name, skipped", i+1)
			continue
		}
		if err := communityRepo.Create(community); err != nil {
			log.Printf("Row %d: failed to create community %s: %v", i+1, community.PublicID, err)
			continue
		}
		count++
	}
	return count, nil
}

func importBets(f *excelize.File, betRepo *pgRepo.BetRepo, communityRepo *pgRepo.CommunityRepo) (int, error) {
	rows, err := f.GetRows("Bets")
	if err != nil {
		log.Printf("No Bets sheet, skipping: %v", err)
		return 0, nil
	}

	count := 0
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		publicID := strings.TrimSpace(row[0])
		communityPublicID := strings.TrimSpace(row[1])
		title := strings.TrimSpace(row[2])
		if publicID == "" || communityPublicID == "" || title == "" {
			log.Printf("Row %d: missing required columns, skipped", i+1)
			continue
		}

		community, err := communityRepo.GetByPublicID(communityPublicID)
		if err != nil {
			log.Printf("Row %d: community %s not found, skipped", i+1, communityPublicID)
			continue
		}

		bet := &entity.Bet{
			PublicID:    publicID,
			CommunityID: community.ID,
			Title:       title,
			Status:      entity.BetStatusOpen,
		}
		if len(row) > 3 {
			bet.Description = strings.TrimSpace(row[3])
		}
		if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
			stake, err := strconv.Atoi(strings.TrimSpace(row[4]))
			if err != nil {
				log.Printf("Row %d: bad stake %q, using 0", i+1, row[4])
			} else {
				bet.Stake = stake
			}
		}
		if len(row) > 5 && strings.TrimSpace(row[5]) != "" {
			bet.Status = strings.TrimSpace(row[5])
		}

		if err := betRepo.Create(bet); err != nil {
			log.Printf("Row %d: failed to create bet %s: %v", i+1, publicID, err)
			continue
		}
		count++
	}
	return count, nil
}
