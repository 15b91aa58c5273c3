package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvConfig holds the CPTESTER_* settings of the process environment.
type EnvConfig struct {
	Workspace   string
	ConfigPath  string
	NatsURL     string
	NatsSubject string
	SqsURL      string
	AwsRegion   string
	LogLevel    string
	ResultsDir  string
	MaxWorkers  int
}

const DefaultNatsSubject = "cptester.progress"

// ReadEnvConfig loads the given .env files (".env" when none) into the
// environment and reads the settings. Missing files are skipped.
func ReadEnvConfig(files ...string) (*EnvConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	result := &EnvConfig{
		Workspace:   os.Getenv("CPTESTER_WORKSPACE"),
		ConfigPath:  os.Getenv("CPTESTER_CONFIG"),
		NatsURL:     os.Getenv("CPTESTER_NATS_URL"),
		NatsSubject: os.Getenv("CPTESTER_NATS_SUBJECT"),
		SqsURL:      os.Getenv("CPTESTER_SQS_URL"),
		AwsRegion:   os.Getenv("CPTESTER_AWS_REGION"),
		LogLevel:    os.Getenv("CPTESTER_LOG_LEVEL"),
		ResultsDir:  os.Getenv("CPTESTER_RESULTS_DIR"),
	}
	if result.NatsSubject == "" {
		result.NatsSubject = DefaultNatsSubject
	}
	if result.AwsRegion == "" {
		result.AwsRegion = os.Getenv("AWS_REGION")
	}
	if v := os.Getenv("CPTESTER_MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid CPTESTER_MAX_WORKERS %q", v)
		}
		result.MaxWorkers = n
	}
	return result, nil
}
