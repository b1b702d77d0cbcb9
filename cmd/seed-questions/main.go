package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/database"
	"github.com/stemsi/exstem-practice/internal/logger"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: seed-questions <questions.json>")
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read question file")
	}

	var seeds []model.SeedQuestion
	if err := json.Unmarshal(raw, &seeds); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse question file")
	}

	// ─── Validate ──────────────────────────────────────────────────────
	validate := govalidator.New()
	questions := make([]model.Question, 0, len(seeds))
	for i, s := range seeds {
		if err := validate.Struct(s); err != nil {
			fmt.Printf("Skipping question #%d: %v\n", i+1, err)
			continue
		}
		questions = append(questions, model.Question{
			ID:            uuid.New(),
			Module:        s.Module,
			QuestionText:  s.QuestionText,
			Options:       s.Options,
			CorrectAnswer: model.Option(s.CorrectAnswer),
			Explanation:   s.Explanation,
			Status:        model.QuestionStatusApproved,
		})
	}
	if len(questions) == 0 {
		fmt.Println("Nothing to seed.")
		return
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	fmt.Printf("=== Seeding %d Questions ===\n", len(questions))

	n, err := questionRepo.CreateBatch(ctx, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to insert questions")
	}

	counts, err := questionRepo.CountApprovedByModule(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count questions")
	}

	modules := make([]string, 0, len(counts))
	for m := range counts {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	fmt.Printf("\nSeed completed! Inserted %d/%d questions.\n", n, len(seeds))
	fmt.Println("Approved questions per module:")
	for _, m := range modules {
		fmt.Printf("  %-14s %d\n", m, counts[m])
	}
}
