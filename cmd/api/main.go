package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/carewellhq/carewell-backend/api/routes"
	"github.com/carewellhq/carewell-backend/internal/appointments"
	"github.com/carewellhq/carewell-backend/internal/auth"
	"github.com/carewellhq/carewell-backend/internal/billing"
	"github.com/carewellhq/carewell-backend/internal/bloodbank"
	"github.com/carewellhq/carewell-backend/internal/bloodrequests"
	"github.com/carewellhq/carewell-backend/internal/doctors"
	"github.com/carewellhq/carewell-backend/internal/patients"
	"github.com/carewellhq/carewell-backend/internal/payments"
	"github.com/carewellhq/carewell-backend/internal/pharmacy"
	"github.com/carewellhq/carewell-backend/internal/prescriptions"
	"github.com/carewellhq/carewell-backend/internal/testimonials"
	"github.com/carewellhq/carewell-backend/internal/users"
	stripewebhook "github.com/carewellhq/carewell-backend/internal/webhooks/stripe"
	"github.com/carewellhq/carewell-backend/pkg/auth/session"
	"github.com/carewellhq/carewell-backend/pkg/config"
	"github.com/carewellhq/carewell-backend/pkg/db"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/migrate"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/redis"
	"github.com/carewellhq/carewell-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}
	checkoutClient := payments.NewCheckoutClient(stripeClient)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	patientService, err := patients.NewService(patients.ServiceParams{
		Repo:   patients.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create patient service", err)
		os.Exit(1)
	}

	doctorService, err := doctors.NewService(doctors.ServiceParams{
		Repo:   doctors.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create doctor service", err)
		os.Exit(1)
	}

	bloodBankService, err := bloodbank.NewService(bloodbank.ServiceParams{
		Repo:     bloodbank.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Outbox:   outboxService,
		Cache:    redisClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create blood bank service", err)
		os.Exit(1)
	}

	bloodRequestService, err := bloodrequests.NewService(bloodrequests.ServiceParams{
		Repo:      bloodrequests.NewRepository(dbClient.DB()),
		Inventory: bloodBankService,
		TxRunner:  dbClient,
		Outbox:    outboxService,
		Cache:     redisClient,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create blood request service", err)
		os.Exit(1)
	}

	appointmentService, err := appointments.NewService(appointments.ServiceParams{
		Repo:     appointments.NewRepository(dbClient.DB()),
		Doctors:  doctorService,
		TxRunner: dbClient,
		Outbox:   outboxService,
		Checkout: checkoutClient,
		URLs:     stripeClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create appointment service", err)
		os.Exit(1)
	}

	pharmacyService, err := pharmacy.NewService(pharmacy.ServiceParams{
		Repo:     pharmacy.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Outbox:   outboxService,
		Cache:    redisClient,
		Checkout: checkoutClient,
		URLs:     stripeClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pharmacy service", err)
		os.Exit(1)
	}

	prescriptionService, err := prescriptions.NewService(prescriptions.ServiceParams{
		Repo:     prescriptions.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Catalog:  pharmacyService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create prescription service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:   billing.NewRepository(dbClient.DB()),
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	testimonialService, err := testimonials.NewService(testimonials.ServiceParams{
		Repo:   testimonials.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create testimonial service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Appointments:      appointmentService,
		Pharmacy:          pharmacyService,
		Billing:           billingService,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, 7*24*time.Hour, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			routes.Services{
				Auth:          authService,
				Register:      registerService,
				Patients:      patientService,
				Doctors:       doctorService,
				BloodBank:     bloodBankService,
				BloodRequests: bloodRequestService,
				Appointments:  appointmentService,
				Pharmacy:      pharmacyService,
				Prescriptions: prescriptionService,
				Billing:       billingService,
				Testimonials:  testimonialService,
			},
			stripeClient,
			stripeWebhookService,
			stripeWebhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
