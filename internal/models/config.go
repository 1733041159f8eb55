package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Rule engine policy
	Engine EngineConfig `yaml:"engine"`

	// OCR / text extraction
	OCR OCRConfig `yaml:"ocr"`

	// AI config
	AI AIConfig `yaml:"ai"`

	// Knowledge base used as extra context for the narrative analysis
	Knowledge KnowledgeConfig `yaml:"knowledge"`
}

// EngineConfig holds the tunable policy of the compliance engine
type EngineConfig struct {
	DefaultVATRate *float64 `yaml:"default_vat_rate"` // applied to lines without a VAT marker; nil means 20, 0 is allowed
	CISRate        float64  `yaml:"cis_rate"`         // deduction rate on labour (default 20)
	ScanLimit      int      `yaml:"scan_limit"`       // max table lines scanned after the header
	MaxItems       int      `yaml:"max_items"`        // max line items collected
}

// OCRConfig represents text extraction configuration
type OCRConfig struct {
	MaxUploadMB int `yaml:"max_upload_mb"` // default 10
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	// OpenAI
	OpenAI OpenAIConfig `yaml:"openai"`

	// Gemini
	Gemini GeminiConfig `yaml:"gemini"`

	// Ollama (local)
	Ollama OllamaConfig `yaml:"ollama"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "openai", "gemini", "ollama"
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o-mini"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434"
	Model   string `yaml:"model"`    // e.g., "mistral", "llama3"
}

// KnowledgeConfig points at the internal semantic search service
type KnowledgeConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}
