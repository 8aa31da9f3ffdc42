package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"hdf-dwh/internal/config"
	"hdf-dwh/internal/database"
	"hdf-dwh/internal/logger"
	"hdf-dwh/internal/sqlexec"
)

func main() {
	var (
		preview = flag.Bool("preview", false, "print statements without executing")
		only    = flag.String("script", "", "run a single script (file name, e.g. 009_create_rls.sql)")
		sqlDir  = flag.String("sql-dir", "", "override the SQL script directory")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if *sqlDir != "" {
		cfg.SQLDir = *sqlDir
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "dwh-deploy")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	scripts, err := sqlexec.ListScripts(cfg.SQLDir)
	if err != nil {
		log.Fatalf("Failed to list scripts: %v", err)
	}
	if *only != "" {
		var match []string
		for _, s := range scripts {
			if filepath.Base(s) == *only {
				match = append(match, s)
			}
		}
		if len(match) == 0 {
			log.Fatalf("Script %s not found in %s", *only, cfg.SQLDir)
		}
		scripts = match
	}

	if *preview {
		for _, script := range scripts {
			raw, err := os.ReadFile(script)
			if err != nil {
				log.Fatalf("Failed to read %s: %v", script, err)
			}
			statements := sqlexec.SplitStatements(string(raw))
			fmt.Printf("-- %s (%d statements)\n", filepath.Base(script), len(statements))
			for _, stmt := range statements {
				fmt.Println(stmt + ";")
			}
			fmt.Println()
		}
		return
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)
	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	ctx := context.Background()
	runner := sqlexec.NewRunner(db, zlog)
	for _, script := range scripts {
		n, err := runner.ExecuteScript(ctx, script)
		if err != nil {
			log.Fatalf("Deployment stopped: %v", err)
		}
		fmt.Printf("OK %s (%d statements)\n", filepath.Base(script), n)
	}

	// The RLS default is part of the deployment, not of the scripts: the
	// scripts seed OUVERT and the deploy flips it when asked.
	mode := "OUVERT"
	if cfg.FailClosed {
		mode = "FERME"
	}
	if _, err := db.ExecContext(ctx, `UPDATE security.parametres_rls SET mode = $1`, mode); err != nil {
		log.Fatalf("Failed to set RLS mode: %v", err)
	}
	fmt.Printf("\nRLS mode: %s\nDeployment complete (%d scripts)\n",
		strings.ToLower(mode), len(scripts))
}
