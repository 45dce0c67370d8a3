// cmd/server/main.go
package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/dropsentry/campaign-backend/internal/aggregate"
	"github.com/dropsentry/campaign-backend/internal/canary"
	"github.com/dropsentry/campaign-backend/internal/controller"
	"github.com/dropsentry/campaign-backend/internal/db"
	"github.com/dropsentry/campaign-backend/internal/dedup"
	"github.com/dropsentry/campaign-backend/internal/geo"
	"github.com/dropsentry/campaign-backend/internal/metrics"
	"github.com/dropsentry/campaign-backend/internal/queue"
	"github.com/dropsentry/campaign-backend/internal/registry"
	"github.com/dropsentry/campaign-backend/internal/repository"
	"github.com/dropsentry/campaign-backend/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, relying on OS environment variables")
	}

	// Init DB
	db.Init()

	campaignRepo := &repository.CampaignRepository{DB: db.DB}
	profileRepo := &repository.ProfileRepository{DB: db.DB}
	driveRepo := &repository.DriveRepository{DB: db.DB}
	tokenRepo := &repository.TokenRepository{DB: db.DB}
	triggerRepo := &repository.TriggerRepository{DB: db.DB}

	// Warm the token registry from the tokens table.
	tokenRegistry := registry.New(tokenRepo)
	if err := tokenRegistry.Warm(); err != nil {
		log.WithError(err).Fatal("failed to warm token registry")
	}
	log.WithField("tokens", tokenRegistry.Len()).Info("token registry warmed")

	// Rebuild aggregates from the trigger log. The log is the source of
	// truth; the in-memory views are just its cache.
	drives, err := driveRepo.ListAll()
	if err != nil {
		log.WithError(err).Fatal("failed to load drives")
	}
	triggers, err := triggerRepo.ListAll()
	if err != nil {
		log.WithError(err).Fatal("failed to load trigger log")
	}
	agg := aggregate.Replay(drives, triggers)
	log.WithFields(log.Fields{"drives": len(drives), "triggers": len(triggers)}).Info("aggregates replayed")

	q := queue.NewInMemoryQueue()
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		publisher, err := queue.NewAMQPPublisher(amqpURL, queue.TopicTriggerAlerts)
		if err != nil {
			log.WithError(err).Warn("AMQP unavailable, live alerts disabled")
		} else {
			queue.StartAlertRelay(q, publisher)
		}
	}

	canaryClient := canary.NewHTTPClient(os.Getenv("CANARY_SERVER"), os.Getenv("CANARY_FACTORY_AUTH"))
	enricher := geo.NewIPAPIEnricher(os.Getenv("GEO_API_URL"))

	driveService := &service.DriveService{
		DriveRepo:    driveRepo,
		TokenRepo:    tokenRepo,
		TriggerRepo:  triggerRepo,
		CampaignRepo: campaignRepo,
		ProfileRepo:  profileRepo,
		Canary:       canaryClient,
		Registry:     tokenRegistry,
		Aggregate:    agg,
	}

	ingestMetrics := metrics.NewIngestMetrics(prometheus.DefaultRegisterer)
	ingestService := &service.IngestService{
		Secret:    os.Getenv("WEBHOOK_SECRET"),
		Registry:  tokenRegistry,
		Geo:       enricher,
		Drives:    driveService,
		Dedup:     dedup.NewWindow(dedup.DefaultTTL),
		Queue:     q,
		Aggregate: agg,
		Metrics:   ingestMetrics,
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		DriveRepo:    driveRepo,
		TokenRepo:    tokenRepo,
		Aggregate:    agg,
	}

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	driveController := &controller.DriveController{
		DriveService: driveService,
		DriveRepo:    driveRepo,
		TokenRepo:    tokenRepo,
	}
	profileController := &controller.ProfileController{ProfileRepo: profileRepo}
	webhookController := &controller.WebhookController{Ingestor: ingestService}
	alertController := &controller.AlertController{
		TriggerRepo: triggerRepo,
		DriveRepo:   driveRepo,
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Patch("/campaigns/{id}/status", campaignController.UpdateStatus)
	r.Get("/campaigns/{id}/stats", campaignController.GetStats)
	r.Get("/reports/campaign/{id}", campaignController.GetReport)

	// Drive routes
	r.Post("/drives", driveController.CreateDrive)
	r.Get("/drives", driveController.ListDrives)
	r.Get("/drives/by-code/{code}", driveController.GetDriveByCode)
	r.Get("/drives/{id}", driveController.GetDrive)
	r.Post("/drives/{id}/prepare", driveController.PrepareDrive)
	r.Post("/drives/{id}/deploy", driveController.DeployDrive)
	r.Post("/drives/{id}/recover", driveController.RecoverDrive)
	r.Get("/drives/{id}/tokens", driveController.GetDriveTokens)

	// Profile routes
	r.Post("/profiles", profileController.CreateProfile)
	r.Get("/profiles", profileController.ListProfiles)

	// Ingestion + alert routes
	r.Post("/webhooks/trigger", webhookController.ReceiveTrigger)
	r.Get("/alerts/recent", alertController.RecentAlerts)
	r.Get("/alerts/map", alertController.AlertMap)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("server running")
	log.Fatal(http.ListenAndServe(":"+port, r))
}
