package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aivs/invoice-compliance/api"
	"github.com/aivs/invoice-compliance/internal/auth"
	"github.com/aivs/invoice-compliance/internal/compliance"
	"github.com/aivs/invoice-compliance/internal/db"
	"github.com/aivs/invoice-compliance/internal/models"
	"github.com/aivs/invoice-compliance/internal/storage"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Printf("Warning: Database not available: %v", err)
		log.Println("Running in stateless mode (reports are not stored)")
	} else {
		defer db.Close()
		log.Println("Database connection pool initialized")
	}

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Printf("Warning: MinIO storage not available: %v", err)
		log.Println("Corrected invoices and uploads will not be stored")
	} else {
		log.Println("MinIO storage initialized")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	handler := api.NewHandler(config)
	router := handler.SetupRoutes()
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health, /api/login and /api/check-invoice)
	protectedRouter := auth.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Invoice Compliance Service v%s on %s", api.Version, addr)
	policy := compliance.PolicyFromConfig(config.Engine)
	log.Printf("Default VAT rate: %s%%, CIS rate: %s%%", policy.DefaultVATRate, policy.CISRate)
	log.Printf("Default AI Provider: %s", config.AI.DefaultProvider)
	log.Printf("Knowledge base: %v", config.Knowledge.URL != "")
	log.Printf("Database: %v", db.Available())
	log.Printf("Storage: %v", storage.Available())
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login              - Authenticate", addr)
	log.Printf("  POST http://%s/api/check-invoice      - Check invoice compliance", addr)
	log.Printf("  GET  http://%s/api/reports            - List stored reports (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/reports/{id}       - Get stored report (requires JWT)", addr)
	log.Printf("  GET  http://%s/health                 - Health check", addr)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig reads the YAML config (a missing file means defaults) and applies env overrides
func loadConfig(path string) (*models.Config, error) {
	var config models.Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Printf("Config file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnv(&config)
	applyDefaults(&config)
	return &config, nil
}

func applyEnv(config *models.Config) {
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			config.Port = n
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if rate := os.Getenv("DEFAULT_VAT_RATE"); rate != "" {
		if v, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Engine.DefaultVATRate = &v
		}
	}
	if rate := os.Getenv("CIS_RATE"); rate != "" {
		if v, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Engine.CISRate = v
		}
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.AI.Gemini.Model = model
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.AI.Ollama.BaseURL = baseURL
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if url := os.Getenv("KNOWLEDGE_URL"); url != "" {
		config.Knowledge.URL = url
	}
	if apiKey := os.Getenv("INTERNAL_API_KEY"); apiKey != "" {
		config.Knowledge.APIKey = apiKey
	}
}

func applyDefaults(config *models.Config) {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Host == "" {
		config.Host = "0.0.0.0"
	}
	if config.AI.DefaultProvider == "" {
		config.AI.DefaultProvider = "openai"
	}
}
