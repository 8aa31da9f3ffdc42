package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"hdf-dwh/internal/config"
	"hdf-dwh/internal/database"
	"hdf-dwh/internal/domain"
	"hdf-dwh/internal/logger"
	"hdf-dwh/internal/repository"
	"hdf-dwh/internal/secgen"
	"hdf-dwh/internal/service"
)

func main() {
	var (
		check       = flag.Bool("check", false, "generate and print the network without loading")
		load        = flag.Bool("load", false, "load the generated network (resets security tables)")
		reset       = flag.Bool("reset", false, "empty the security tables without reloading")
		createUsers = flag.Bool("create-users", false, "create missing consultant logins")
		rlsMode     = flag.String("rls-mode", "", "switch the RLS default: OUVERT or FERME")
		trackConn   = flag.Int("track-connexions", 0, "snapshot sessions and print the last N days of connection history")
		communes    = flag.String("communes", "data/communes.json", "path to the communes reference file")
		password    = flag.String("password", "AgenceHdF#2025!R", "shared password for created consultant logins")
		timeout     = flag.Duration("timeout", 10*time.Minute, "run timeout")
	)
	flag.Parse()

	if !*check && !*load && !*reset && !*createUsers && *rlsMode == "" && *trackConn == 0 {
		log.Fatal("Usage: load-security [-check | -load | -reset | -create-users | -rls-mode OUVERT|FERME | -track-connexions N]")
	}

	_ = godotenv.Load()
	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "load-security")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	var (
		agences  []*domain.Agence
		employes []*domain.Employe
		zones    []*domain.Zone
	)
	if *check || *load || *createUsers {
		communeList, err := service.LoadCommunesFile(*communes)
		if err != nil {
			log.Fatalf("Failed to load communes: %v", err)
		}

		agences = secgen.BuildAgences(communeList)
		employes = secgen.BuildEmployes(agences)
		zones = secgen.BuildZones(employes)

		fmt.Printf("Réseau généré : %d agences, %d employés, %d zones\n",
			len(agences), len(employes), len(zones))
		rep := secgen.Repartition(employes)
		niveaux := make([]string, 0, len(rep))
		for niveau := range rep {
			niveaux = append(niveaux, niveau)
		}
		sort.Strings(niveaux)
		for _, niveau := range niveaux {
			fmt.Printf("  %-25s %d\n", niveau, rep[niveau])
		}
	}

	if *check {
		return
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	securitySvc := service.NewSecurityService(
		repository.NewPostgresSecurityRepository(db),
		repository.NewPostgresEtlLogsRepository(db),
		zlog)

	if *reset {
		if err := securitySvc.Reset(ctx); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		fmt.Println("Tables security vidées")
	}

	if *load {
		if err := securitySvc.Load(ctx, agences, employes, zones); err != nil {
			log.Fatalf("Load failed: %v", err)
		}
		nbA, nbE, nbZ, err := securitySvc.Counts(ctx)
		if err != nil {
			log.Fatalf("Count check failed: %v", err)
		}
		fmt.Printf("Chargé : %d agences, %d employés, %d zones\n", nbA, nbE, nbZ)
	}

	if *createUsers {
		var consultants []*domain.Employe
		for _, e := range employes {
			if e.NiveauHierarchique == domain.NiveauCollaborateur ||
				e.NiveauHierarchique == domain.NiveauDirecteurAgence {
				consultants = append(consultants, e)
			}
		}
		created, err := securitySvc.CreateUsers(ctx, consultants, *password)
		if err != nil {
			log.Fatalf("User creation failed: %v", err)
		}
		fmt.Printf("%d utilisateurs créés\n", created)
	}

	if *rlsMode != "" {
		if err := securitySvc.SetMode(ctx, *rlsMode); err != nil {
			log.Fatalf("RLS mode change failed: %v", err)
		}
		fmt.Printf("Mode RLS : %s\n", *rlsMode)
	}

	if *trackConn > 0 {
		connexions, err := securitySvc.TrackConnections(ctx, *trackConn)
		if err != nil {
			log.Fatalf("Connection tracking failed: %v", err)
		}
		fmt.Printf("Historique des connexions (%d jours) : %d sessions\n", *trackConn, len(connexions))
		for _, c := range connexions {
			appli := ""
			if c.Application != nil {
				appli = *c.Application
			}
			fmt.Printf("  %-20s %s  %-10s %s\n",
				c.LoginSQL, c.HeureConnexion.Format("2006-01-02 15:04:05"),
				c.StatutSession, appli)
		}
	}
}
