package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carewellhq/carewell-backend/api/controllers"
	webhookcontrollers "github.com/carewellhq/carewell-backend/api/controllers/webhooks"
	"github.com/carewellhq/carewell-backend/api/middleware"
	"github.com/carewellhq/carewell-backend/internal/appointments"
	"github.com/carewellhq/carewell-backend/internal/auth"
	"github.com/carewellhq/carewell-backend/internal/billing"
	"github.com/carewellhq/carewell-backend/internal/bloodbank"
	"github.com/carewellhq/carewell-backend/internal/bloodrequests"
	"github.com/carewellhq/carewell-backend/internal/doctors"
	"github.com/carewellhq/carewell-backend/internal/patients"
	"github.com/carewellhq/carewell-backend/internal/pharmacy"
	"github.com/carewellhq/carewell-backend/internal/prescriptions"
	"github.com/carewellhq/carewell-backend/internal/testimonials"
	stripewebhook "github.com/carewellhq/carewell-backend/internal/webhooks/stripe"
	"github.com/carewellhq/carewell-backend/pkg/auth/session"
	"github.com/carewellhq/carewell-backend/pkg/config"
	"github.com/carewellhq/carewell-backend/pkg/db"
	"github.com/carewellhq/carewell-backend/pkg/enums"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/redis"
	"github.com/carewellhq/carewell-backend/pkg/stripe"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Services bundles the domain services the router exposes over HTTP.
type Services struct {
	Auth          auth.Service
	Register      auth.RegisterService
	Patients      patients.Service
	Doctors       doctors.Service
	BloodBank     bloodbank.Service
	BloodRequests bloodrequests.Service
	Appointments  appointments.Service
	Pharmacy      pharmacy.Service
	Prescriptions prescriptions.Service
	Billing       billing.Service
	Testimonials  testimonials.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions sessionManager,
	svcs Services,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	authed := func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(dbP, redisClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
			r.With(
				middleware.AuthRateLimit(registerPolicy, redisClient, logg),
				middleware.Idempotency(redisClient, logg),
			).Post("/register", controllers.AuthRegister(svcs.Register, logg))
			r.Post("/refresh", controllers.AuthRefresh(svcs.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(svcs.Auth, cfg.JWT, logg))
			r.With(middleware.Auth(cfg.JWT, sessions, logg)).Get("/me", controllers.AuthMe(svcs.Auth, logg))
		})

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", controllers.DoctorList(svcs.Doctors, logg))
			r.Get("/{id}", controllers.DoctorGet(svcs.Doctors, logg))
			r.Get("/{id}/slots", controllers.DoctorSlots(svcs.Appointments, logg))
		})

		r.Route("/blood-bank", func(r chi.Router) {
			r.Get("/summary", controllers.BloodSummary(svcs.BloodBank, logg))
			r.Get("/inventory", controllers.BloodInventoryList(svcs.BloodBank, logg))
			r.Get("/inventory/{group}", controllers.BloodInventoryGet(svcs.BloodBank, logg))

			r.Group(func(r chi.Router) {
				authed(r)
				r.Post("/requests", controllers.BloodRequestCreate(svcs.BloodRequests, logg))
				r.Get("/requests/mine", controllers.BloodRequestListMine(svcs.BloodRequests, logg))
				r.Get("/requests/{id}", controllers.BloodRequestGet(svcs.BloodRequests, logg))
				r.Post("/requests/{id}/cancel", controllers.BloodRequestCancel(svcs.BloodRequests, svcs.Auth, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaff(logg))
					r.Get("/requests", controllers.BloodRequestList(svcs.BloodRequests, logg))
					r.Post("/requests/{id}/decide", controllers.BloodRequestDecide(svcs.BloodRequests, svcs.Auth, logg))
					r.Post("/requests/{id}/fulfill", controllers.BloodRequestFulfill(svcs.BloodRequests, svcs.Auth, logg))
					r.Get("/inventory/{group}/history", controllers.BloodHistoryList(svcs.BloodBank, logg))
					r.Post("/inventory/{group}/adjust", controllers.BloodInventoryAdjust(svcs.BloodBank, svcs.Auth, logg))
				})
			})
		})

		r.Route("/patients", func(r chi.Router) {
			authed(r)
			r.Get("/me", controllers.PatientMe(svcs.Patients, logg))
			r.Put("/me", controllers.PatientUpdateMe(svcs.Patients, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Get("/", controllers.PatientList(svcs.Patients, logg))
				r.Get("/{id}", controllers.PatientGet(svcs.Patients, logg))
			})
		})

		r.Route("/appointments", func(r chi.Router) {
			authed(r)
			r.Post("/", controllers.AppointmentBook(svcs.Appointments, svcs.Patients, logg))
			r.Get("/mine", controllers.AppointmentListMine(svcs.Appointments, svcs.Patients, logg))
			r.Get("/{id}", controllers.AppointmentGet(svcs.Appointments, logg))
			r.Post("/{id}/cancel", controllers.AppointmentCancel(svcs.Appointments, svcs.Patients, logg))
			r.Post("/{id}/checkout", controllers.AppointmentCheckout(svcs.Appointments, svcs.Patients, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Get("/", controllers.AppointmentList(svcs.Appointments, logg))
				r.Post("/{id}/complete", controllers.AppointmentComplete(svcs.Appointments, logg))
			})
		})

		r.Route("/pharmacy", func(r chi.Router) {
			r.Get("/catalog", controllers.MedicineCatalog(svcs.Pharmacy, logg))
			r.Get("/catalog/{id}", controllers.MedicineGet(svcs.Pharmacy, logg))

			r.Group(func(r chi.Router) {
				authed(r)
				r.Get("/cart", controllers.CartGet(svcs.Pharmacy, svcs.Patients, logg))
				r.Put("/cart", controllers.CartPut(svcs.Pharmacy, svcs.Patients, logg))
				r.Delete("/cart/{medicineID}", controllers.CartRemove(svcs.Pharmacy, svcs.Patients, logg))
				r.Post("/checkout", controllers.PharmacyCheckout(svcs.Pharmacy, svcs.Patients, logg))
				r.Get("/orders", controllers.PharmacyOrderList(svcs.Pharmacy, svcs.Patients, logg))
				r.Get("/orders/{id}", controllers.PharmacyOrderGet(svcs.Pharmacy, logg))
			})
		})

		r.Route("/prescriptions", func(r chi.Router) {
			authed(r)
			r.Get("/mine", controllers.PrescriptionListMine(svcs.Prescriptions, svcs.Patients, logg))
			r.Get("/{id}", controllers.PrescriptionGet(svcs.Prescriptions, svcs.Doctors, svcs.Patients, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleDoctor))
				r.Post("/", controllers.PrescriptionCreate(svcs.Prescriptions, svcs.Doctors, logg))
				r.Put("/{id}", controllers.PrescriptionUpdate(svcs.Prescriptions, svcs.Doctors, logg))
				r.Get("/authored", controllers.PrescriptionListAuthored(svcs.Prescriptions, svcs.Doctors, logg))
			})
		})

		r.Route("/invoices", func(r chi.Router) {
			authed(r)
			r.Get("/mine", controllers.InvoiceListMine(svcs.Billing, svcs.Patients, logg))
			r.Get("/{id}", controllers.InvoiceGet(svcs.Billing, svcs.Patients, logg))
		})

		r.Route("/testimonials", func(r chi.Router) {
			r.Get("/", controllers.TestimonialListPublic(svcs.Testimonials, logg))
			r.With(
				middleware.Auth(cfg.JWT, sessions, logg),
				middleware.Idempotency(redisClient, logg),
			).Post("/", controllers.TestimonialSubmit(svcs.Testimonials, svcs.Patients, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			authed(r)
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/users/staff", controllers.AuthStaffRegister(svcs.Register, logg))
			r.Put("/blood-bank/inventory/{group}", controllers.BloodInventoryUpsert(svcs.BloodBank, svcs.Auth, logg))
			r.Delete("/blood-bank/inventory/{group}", controllers.BloodInventoryDelete(svcs.BloodBank, svcs.Auth, logg))
			r.Route("/doctors", func(r chi.Router) {
				r.Post("/", controllers.DoctorCreate(svcs.Doctors, logg))
				r.Put("/{id}", controllers.DoctorUpdate(svcs.Doctors, logg))
				r.Delete("/{id}", controllers.DoctorDeactivate(svcs.Doctors, logg))
			})
			r.Route("/pharmacy/medicines", func(r chi.Router) {
				r.Post("/", controllers.MedicineCreate(svcs.Pharmacy, logg))
				r.Put("/{id}", controllers.MedicineUpdate(svcs.Pharmacy, logg))
				r.Post("/{id}/stock", controllers.MedicineAdjustStock(svcs.Pharmacy, logg))
			})
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", controllers.InvoiceList(svcs.Billing, logg))
				r.Post("/{id}/void", controllers.InvoiceVoid(svcs.Billing, logg))
			})
			r.Route("/testimonials", func(r chi.Router) {
				r.Get("/", controllers.TestimonialList(svcs.Testimonials, logg))
				r.Post("/{id}/moderate", controllers.TestimonialModerate(svcs.Testimonials, logg))
			})
		})
	})

	return r
}
