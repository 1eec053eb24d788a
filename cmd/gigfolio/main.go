package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/gigfolio/gigfolio/app/repository"
	"github.com/gigfolio/gigfolio/internal/pkg/cache"
	"github.com/gigfolio/gigfolio/internal/pkg/database"
	"github.com/gigfolio/gigfolio/internal/pkg/env"
	"github.com/gigfolio/gigfolio/internal/pkg/jobqueue"
	"github.com/gigfolio/gigfolio/internal/pkg/router"
	"github.com/gigfolio/gigfolio/internal/pkg/scheduler"
)

func main() {
	app := NewApplication()

	ctx, cancel := context.WithCancel(context.Background())

	// background workers
	manager := jobqueue.GetManager()
	manager.Start()

	repos := repository.GetGlobalRepositories()
	sched := scheduler.NewScheduler(repos.User, repos.Connection, manager.GetQueue())
	go sched.Start(ctx, scheduler.TriggerInterval())

	// graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Println("Shutting down...")
		cancel()
		manager.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName: "gigfolio",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
