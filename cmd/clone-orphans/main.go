// Command clone-orphans re-associates employee records stranded on a
// superseded ASP establishment id. Dry-run by default: nothing is written
// unless --wet-run is passed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gip-inclusion/employee-records/internal/adapters/repository/postgres"
	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
	"github.com/gip-inclusion/employee-records/internal/platform/config"
	pg "github.com/gip-inclusion/employee-records/internal/platform/db/postgres"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		oldASPID   = flag.Int64("old-asp-id", 0, "superseded ASP establishment id")
		newASPID   = flag.Int64("new-asp-id", 0, "current ASP establishment id")
		wetRun     = flag.Bool("wet-run", false, "actually clone; default is a dry run report")
	)
	flag.Parse()

	if *oldASPID <= 0 || *newASPID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database pool: %v", err)
	}
	defer dbPool.Close()

	repo := postgres.NewEmployeeRecordRepository(dbPool)
	svc := employeerecord.NewService(repo, nil, pg.NewTransactionManager(dbPool))

	result, err := svc.CloneOrphans(ctx, employeerecord.CloneOrphansInput{
		OldASPID: *oldASPID,
		NewASPID: *newASPID,
		WetRun:   *wetRun,
	})
	if err != nil {
		log.Fatalf("reconciliation failed: %v", err)
	}

	if companies := distinctCompanies(result.Candidates); len(companies) > 1 {
		fmt.Fprintf(os.Stderr, "warning: asp id %d is shared by %d companies, check the pair before a wet run\n", *newASPID, len(companies))
	}

	if !*wetRun {
		for _, er := range result.Candidates {
			fmt.Printf("would clone %s (approval %s, siret %s)\n", er.ID, er.ApprovalNumber, er.SIRET)
		}
		fmt.Fprintf(os.Stderr, "%d employee records will be cloned (dry run, pass --wet-run to apply)\n", len(result.Candidates))
		return
	}

	cloned := 0
	failed := 0
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			failed++
			fmt.Printf("clone of %s failed: %v\n", outcome.SourceID, outcome.Err)
			continue
		}
		cloned++
		fmt.Printf("cloned %s -> %s\n", outcome.SourceID, outcome.CloneID)
	}
	fmt.Fprintf(os.Stderr, "%d cloned, %d failed out of %d candidates\n", cloned, failed, len(result.Candidates))
}

func distinctCompanies(records []*employeerecord.EmployeeRecord) []string {
	seen := make(map[string]struct{})
	var companies []string
	for _, er := range records {
		if er.JobApplication == nil || er.JobApplication.Company == nil {
			continue
		}
		id := er.JobApplication.Company.ID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		companies = append(companies, id)
	}
	return companies
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}
