package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment   string
	Addr          string
	DatabaseURL   string
	MigrationsDir string

	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	CloudinaryBaseURL      string
	CloudinaryCloudName    string
	CloudinaryUploadPreset string
	CloudinaryRootFolder   string

	GroqBaseURL        string
	GroqAPIKey         string
	AssistantModel     string
	AssistantMaxTokens int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AppBaseURL           string
	MaxArchiveBytes      int64
	MaxUploadConcurrency int
	DeployLockTTL        time.Duration
	UpstreamTimeout      time.Duration
	LogBuffer            int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:   GetString("APP_ENV", "development"),
		Addr:          GetString("API_ADDR", ":4000"),
		DatabaseURL:   GetString("DATABASE_URL", "postgres://nimbus:nimbus@db:5432/nimbus?sslmode=disable"),
		MigrationsDir: GetString("DB_MIGRATIONS_DIR", "./db/migrations"),

		SupabaseURL:       GetString("SUPABASE_URL", ""),
		SupabaseAnonKey:   GetString("SUPABASE_ANON_KEY", ""),
		SupabaseJWTSecret: GetString("SUPABASE_JWT_SECRET", ""),

		CloudinaryBaseURL:      GetString("CLOUDINARY_BASE_URL", "https://api.cloudinary.com"),
		CloudinaryCloudName:    GetString("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryUploadPreset: GetString("CLOUDINARY_UPLOAD_PRESET", "nimbus_projectfiles"),
		CloudinaryRootFolder:   GetString("CLOUDINARY_ROOT_FOLDER", "nimbuswave_projects"),

		GroqBaseURL:        GetString("GROQ_BASE_URL", "https://api.groq.com"),
		GroqAPIKey:         GetString("GROQ_API_KEY", ""),
		AssistantModel:     GetString("ASSISTANT_MODEL", "llama-3.1-70b-versatile"),
		AssistantMaxTokens: GetInt("ASSISTANT_MAX_TOKENS", 712),

		RedisAddr:     GetString("REDIS_ADDR", ""),
		RedisPassword: GetString("REDIS_PASSWORD", ""),
		RedisDB:       GetInt("REDIS_DB", 0),

		AppBaseURL:           GetString("APP_BASE_URL", "https://nimbuswave.dev"),
		MaxArchiveBytes:      int64(GetInt("MAX_ARCHIVE_BYTES", 1<<20)),
		MaxUploadConcurrency: GetInt("MAX_UPLOAD_CONCURRENCY", 4),
		DeployLockTTL:        GetDuration("DEPLOY_LOCK_TTL", 2*time.Minute),
		UpstreamTimeout:      GetDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		LogBuffer:            GetInt("WS_LOG_BUFFER", 100),
	}
}
