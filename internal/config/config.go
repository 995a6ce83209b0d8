package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	StoreBigQuery = "bigquery"
	StorePostgres = "postgres"
)

type Config struct {
	AppHost  string `yaml:"app_host"`
	HTTPPort string `yaml:"http_port"`
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	// LanguageCode is sent with every agent request.
	LanguageCode string `yaml:"language_code"`
	// ServiceAccountPath, if set, is used for every Google client instead of ADC.
	ServiceAccountPath string `yaml:"service_account_path"`

	// TicketStore selects the record store backend: bigquery or postgres.
	TicketStore string `yaml:"ticket_store"`

	Twilio struct {
		AccountSID string `yaml:"account_sid"`
		AuthToken  string `yaml:"auth_token"`
	} `yaml:"twilio"`

	BigQuery struct {
		ProjectID       string `yaml:"project_id"`
		DatasetID       string `yaml:"dataset_id"`
		TableID         string `yaml:"table_id"`
		TableIDWhatsApp string `yaml:"table_id_wa"`
	} `yaml:"bigquery"`

	Agent struct {
		ProjectID string `yaml:"project_id"`
		AgentID   string `yaml:"agent_id"`
		Location  string `yaml:"location"`
	} `yaml:"agent"`

	DB struct {
		Host          string `yaml:"host"`
		Port          string `yaml:"port"`
		User          string `yaml:"user"`
		Password      string `yaml:"password"`
		Database      string `yaml:"database"`
		SSLMode       string `yaml:"sslmode"`
		Table         string `yaml:"table"`
		TableWhatsApp string `yaml:"table_wa"`
	} `yaml:"db"`

	KafkaBrokers     []string `yaml:"kafka_brokers"`
	KafkaTopicTicket string   `yaml:"kafka_topic_ticket"`

	// DataStoreLocation is where the knowledge base data store lives (reindex).
	DataStoreLocation string `yaml:"data_store_location"`
}

// Load reads an optional YAML file (CONFIG_FILE) and then applies environment
// variables on top. Env always wins.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.AppHost = getEnv("APP_HOST", or(cfg.AppHost, "0.0.0.0"))
	cfg.HTTPPort = firstEnv("APP_PORT", "HTTP_PORT", "PORT", or(cfg.HTTPPort, "8080"))
	cfg.AppEnv = getEnv("APP_ENV", or(cfg.AppEnv, "development"))
	cfg.LogLevel = getEnv("LOG_LEVEL", or(cfg.LogLevel, "info"))
	cfg.LanguageCode = getEnv("LANGUAGE_CODE", cfg.LanguageCode)
	cfg.ServiceAccountPath = getEnv("SERVICE_ACCOUNT_PATH", cfg.ServiceAccountPath)
	cfg.TicketStore = strings.ToLower(getEnv("TICKET_STORE", or(cfg.TicketStore, StoreBigQuery)))

	cfg.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", cfg.Twilio.AccountSID)
	cfg.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", cfg.Twilio.AuthToken)

	cfg.BigQuery.ProjectID = firstEnv("BIGQUERY_PROJECT_ID", "PROJECT_ID", cfg.BigQuery.ProjectID)
	cfg.BigQuery.DatasetID = getEnv("BIGQUERY_DATASET_ID", cfg.BigQuery.DatasetID)
	cfg.BigQuery.TableID = getEnv("BIGQUERY_TABLE_ID", cfg.BigQuery.TableID)
	cfg.BigQuery.TableIDWhatsApp = getEnv("BIGQUERY_TABLE_ID_WA", cfg.BigQuery.TableIDWhatsApp)

	cfg.Agent.ProjectID = firstEnv("AGENT_PROJECT_ID", "PROJECT_ID", cfg.Agent.ProjectID)
	cfg.Agent.AgentID = getEnv("AGENT_ID", cfg.Agent.AgentID)
	cfg.Agent.Location = getEnv("LOCATION", or(cfg.Agent.Location, "global"))

	cfg.DB.Host = getEnv("DB_HOST", or(cfg.DB.Host, "localhost"))
	cfg.DB.Port = getEnv("DB_PORT", or(cfg.DB.Port, "5432"))
	cfg.DB.User = getEnv("DB_USER", or(cfg.DB.User, "postgres"))
	cfg.DB.Password = getEnv("DB_PASSWORD", or(cfg.DB.Password, "postgres"))
	cfg.DB.Database = getEnv("DB_DATABASE", or(cfg.DB.Database, "ticket_service"))
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", or(cfg.DB.SSLMode, "disable"))
	cfg.DB.Table = getEnv("DB_TABLE", or(cfg.DB.Table, "tickets"))
	cfg.DB.TableWhatsApp = getEnv("DB_TABLE_WA", or(cfg.DB.TableWhatsApp, "tickets_wa"))

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = ParseList(v)
	}
	cfg.KafkaTopicTicket = getEnv("KAFKA_TOPIC_TICKET", cfg.KafkaTopicTicket)
	cfg.DataStoreLocation = getEnv("DATA_STORE_LOCATION", or(cfg.DataStoreLocation, "global"))
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the process cannot start with. Missing
// credentials for downstream services are not errors here: the process
// starts and the affected routes answer with a configuration error.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("config: APP_PORT is required")
	}
	if _, err := strconv.Atoi(c.HTTPPort); err != nil {
		return fmt.Errorf("config: invalid port %q", c.HTTPPort)
	}
	switch c.TicketStore {
	case StoreBigQuery, StorePostgres:
	default:
		return fmt.Errorf("config: TICKET_STORE must be %q or %q, got %q", StoreBigQuery, StorePostgres, c.TicketStore)
	}
	if c.AppEnv == "production" && c.TicketStore == StorePostgres && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	return nil
}

// Missing lists the settings each downstream service needs but does not have.
// Keys are the service names used in logs.
func (c *Config) Missing() map[string][]string {
	out := make(map[string][]string)
	add := func(service, name, value string) {
		if value == "" {
			out[service] = append(out[service], name)
		}
	}
	add("twilio", "TWILIO_ACCOUNT_SID", c.Twilio.AccountSID)
	add("twilio", "TWILIO_AUTH_TOKEN", c.Twilio.AuthToken)
	add("agent", "PROJECT_ID", c.Agent.ProjectID)
	add("agent", "AGENT_ID", c.Agent.AgentID)
	add("agent", "LOCATION", c.Agent.Location)
	if c.TicketStore == StoreBigQuery {
		add("store", "PROJECT_ID", c.BigQuery.ProjectID)
		add("store", "BIGQUERY_DATASET_ID", c.BigQuery.DatasetID)
		add("store", "BIGQUERY_TABLE_ID", c.BigQuery.TableID)
		add("store", "BIGQUERY_TABLE_ID_WA", c.BigQuery.TableIDWhatsApp)
	}
	return out
}

// BigQueryTable returns the table id for the channel.
func (c *Config) BigQueryTable(ch model.Channel) string {
	if ch == model.ChannelWhatsApp {
		return c.BigQuery.TableIDWhatsApp
	}
	return c.BigQuery.TableID
}

// PostgresTable returns the table name for the channel.
func (c *Config) PostgresTable(ch model.Channel) string {
	if ch == model.ChannelWhatsApp {
		return c.DB.TableWhatsApp
	}
	return c.DB.Table
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// ParseList splits "a,b, c" into a slice, dropping empty items.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
