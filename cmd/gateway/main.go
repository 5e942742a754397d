package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/skillforge/skillforge/internal/api/http"
	"github.com/skillforge/skillforge/internal/audit"
	auth "github.com/skillforge/skillforge/internal/auth/middleware"
	"github.com/skillforge/skillforge/internal/config"
	"github.com/skillforge/skillforge/internal/course"
	"github.com/skillforge/skillforge/internal/db"
	"github.com/skillforge/skillforge/internal/grading"
	"github.com/skillforge/skillforge/internal/quiz"
	"github.com/skillforge/skillforge/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	seedAdmin(ctx, dbh, cfg)

	// --- Stores ---
	grader := grading.NewDefaultGrader(
		grading.WithCaseFold(cfg.GradingCaseFold),
		grading.WithMaxEditDistance(cfg.GradingMaxEdit),
	)
	events := audit.NewEventRepo(dbh, cfg.SiteID)
	quizzes := quiz.NewSQLStore(dbh, grader).WithEventLog(events)
	courses := course.NewSQLStore(dbh)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → subject/role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Catalog
		pr.With(rbac.Require("course:view")).
			Get("/courses", api.ListCoursesHandler(courses))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}", api.GetCourseHandler(courses))
		pr.With(rbac.Require("course:create")).
			Post("/courses", api.CreateCourseHandler(courses))
		pr.With(rbac.Require("course:update")).
			Put("/courses/{courseID}", api.UpdateCourseHandler(courses))
		pr.With(rbac.Require("course:publish")).
			Post("/courses/{courseID}/publish", api.PublishCourseHandler(courses))

		// Lessons
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}/lessons", api.ListLessonsHandler(courses))
		pr.With(rbac.Require("lesson:manage")).
			Post("/courses/{courseID}/lessons", api.PutLessonHandler(courses))
		pr.With(rbac.Require("lesson:manage")).
			Delete("/courses/{courseID}/lessons/{lessonID}", api.DeleteLessonHandler(courses))

		// Enrollment + reviews
		pr.With(rbac.Require("enroll:self")).
			Post("/courses/{courseID}/enroll", api.EnrollSelfHandler(courses))
		pr.With(rbac.Require("enroll:self")).
			Delete("/courses/{courseID}/enroll", api.UnenrollSelfHandler(courses))
		pr.With(rbac.Require("enroll:manage")).
			Get("/courses/{courseID}/enrollments", api.ListEnrollmentsHandler(courses))
		pr.With(rbac.Require("review:create")).
			Post("/courses/{courseID}/reviews", api.PutReviewHandler(courses))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}/reviews", api.ListReviewsHandler(courses))

		// Quizzes
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.UploadQuizHandler(quizzes))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes", api.ListQuizzesHandler(quizzes))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(quizzes))
		pr.With(rbac.Require("quiz:delete")).
			Delete("/quizzes/{quizID}", api.DeleteQuizHandler(quizzes))

		// Student attempt flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.CreateAttemptHandler(quizzes, courses))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(quizzes))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(quizzes))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/quiz", api.AttemptQuizHandler(quizzes))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/answers", api.SaveAnswersHandler(quizzes))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(quizzes))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/abandon", api.AbandonAttemptHandler(quizzes))

		// Instructor grading
		pr.With(rbac.Require("attempt:grade")).
			Get("/attempts/{attemptID}/grading", api.GetAttemptGradingHandler(quizzes))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/grading", api.ApplyAttemptGradingHandler(quizzes))

		// Users (admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Deadline sweeper: auto-submits in-progress attempts past their deadline.
	go func() {
		t := time.NewTicker(cfg.SweepInterval)
		defer t.Stop()
		for range t.C {
			n, err := quizzes.ExpireOverdue(context.Background(), time.Now().Unix())
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep: auto-submitted %d overdue attempts", n)
			}
		}
	}()

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// seedAdmin ensures the bootstrap admin account exists.
func seedAdmin(ctx context.Context, dbh *sql.DB, cfg config.Config) {
	_, err := dbh.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1,$2,$3,'admin',$4) ON CONFLICT (id) DO NOTHING`,
		cfg.AdminUser, cfg.AdminUser, cfg.AdminPassHash, time.Now().Unix())
	if err != nil {
		log.Printf("seed admin: %v", err)
	}
}
