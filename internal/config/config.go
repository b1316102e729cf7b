package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed quality.yaml
var qualityYAML []byte

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Roster      RosterConfig
	FaceService FaceServiceConfig
	Recognition RecognitionConfig
	Enrollment  EnrollmentConfig
	Quality     QualityPolicy
}

type ServerConfig struct {
	Host       string
	Port       int
	AdminToken string // bearer token for admin endpoints; empty disables them
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RosterConfig struct {
	DatabaseURL string // MariaDB DSN of the HR system (read-only)
}

type FaceServiceConfig struct {
	URL         string  // face embedding server, defaults to http://localhost:8000
	Dim         int     // embedding dimension, defaults to 512 (Facenet512/ArcFace class models)
	MinDetScore float64 // minimum detector confidence, defaults to 0.9
}

type RecognitionConfig struct {
	// Threshold is the maximum acceptable cosine distance between a probe
	// and a stored embedding. It is converted to a similarity floor
	// (1 - Threshold) exactly once, at the matcher boundary.
	Threshold float64
	TopK      int

	IndexPath     string // base path for the persisted index; empty keeps it in memory only
	AutosaveEvery int    // persist after this many successful adds (default 10)
}

type EnrollmentConfig struct {
	MinQuality float64 // quality gate for enrollment images (default 0.3)
	MinImages  int     // minimum accepted images per batch (default 3)
	MaxImages  int     // maximum images per batch (default 10)
}

// QualityPolicy holds the tunable constants of the quality score. Defaults
// come from the embedded quality.yaml; they depend on capture hardware and
// are not meant to change per request.
type QualityPolicy struct {
	Weights struct {
		Sharpness  float64 `yaml:"sharpness"`
		Brightness float64 `yaml:"brightness"`
		Contrast   float64 `yaml:"contrast"`
	} `yaml:"weights"`
	SharpnessCeiling float64 `yaml:"sharpness_ceiling"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var policy QualityPolicy
	if err := yaml.Unmarshal(qualityYAML, &policy); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded quality.yaml: " + err.Error())
	}

	return &Config{
		Server: ServerConfig{
			Host:       envString("WEB_HOST", "0.0.0.0"),
			Port:       envInt("WEB_PORT", 8080),
			AdminToken: os.Getenv("ADMIN_TOKEN"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Roster: RosterConfig{
			DatabaseURL: os.Getenv("ROSTER_DATABASE_URL"),
		},
		FaceService: FaceServiceConfig{
			URL:         envString("FACE_SERVICE_URL", "http://localhost:8000"),
			Dim:         envInt("FACE_EMBEDDING_DIM", 512),
			MinDetScore: envFloat("FACE_DETECTION_CONFIDENCE", 0.9),
		},
		Recognition: RecognitionConfig{
			Threshold:     envFloat("FACE_RECOGNITION_THRESHOLD", 0.6),
			TopK:          envInt("FACE_RECOGNITION_TOP_K", 5),
			IndexPath:     os.Getenv("FACE_INDEX_PATH"),
			AutosaveEvery: envInt("FACE_INDEX_AUTOSAVE_EVERY", 10),
		},
		Enrollment: EnrollmentConfig{
			MinQuality: envFloat("ENROLLMENT_MIN_QUALITY", 0.3),
			MinImages:  envInt("MIN_ENROLLMENT_IMAGES", 3),
			MaxImages:  envInt("MAX_ENROLLMENT_IMAGES", 10),
		},
		Quality: policy,
	}
}
