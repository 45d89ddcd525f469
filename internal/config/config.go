package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port" default:"8080"`
		Host         string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
	} `yaml:"server"`

	Workers struct {
		PoolSize  int `yaml:"pool_size" default:"4"`
		QueueSize int `yaml:"queue_size" default:"100"`
	} `yaml:"workers"`

	BackgroundTasks struct {
		TaskTimeout     time.Duration `yaml:"task_timeout" default:"300s"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1h"`
		MaxTaskAge      time.Duration `yaml:"max_task_age" default:"24h"`
	} `yaml:"background_tasks"`

	LLM struct {
		Provider    string        `yaml:"provider" default:"claude"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model" default:"claude-3-7-sonnet-latest"`
		MaxTokens   int           `yaml:"max_tokens" default:"8192"`
		Temperature float32       `yaml:"temperature" default:"0.2"`
		Timeout     time.Duration `yaml:"timeout" default:"120s"`
		BaseURL     string        `yaml:"base_url"`
		Theme       string        `yaml:"theme" default:"DEFAULT_THEME"`
	} `yaml:"llm"`

	LaTeX struct {
		Engine         string        `yaml:"engine" default:"pdflatex"`
		RendererURL    string        `yaml:"renderer_url"`
		LocalOnly      bool          `yaml:"local_only" default:"false"`
		RemoteMaxBytes int           `yaml:"remote_max_bytes" default:"7000"`
		RemoteRate     float64       `yaml:"remote_rate" default:"2"` // requests per second
		RemoteBurst    int           `yaml:"remote_burst" default:"4"`
		Timeout        time.Duration `yaml:"timeout" default:"30s"`
		MaxOutputBytes int           `yaml:"max_output_bytes" default:"1048576"`
		LogTailLines   int           `yaml:"log_tail_lines" default:"40"`
		TempDir        string        `yaml:"temp_dir"`
		Sandbox        bool          `yaml:"sandbox" default:"false"`
	} `yaml:"latex"`

	Pipeline struct {
		PageBudget           int `yaml:"page_budget" default:"2"`
		MaxRetries           int `yaml:"max_retries" default:"2"`
		MaxCompressionRounds int `yaml:"max_compression_rounds" default:"1"`
	} `yaml:"pipeline"`

	Progress struct {
		Heartbeat     time.Duration `yaml:"heartbeat" default:"15s"`
		Retention     time.Duration `yaml:"retention" default:"10m"`
		History       int           `yaml:"history" default:"32"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"1m"`
	} `yaml:"progress"`

	Renderer struct {
		Port         int   `yaml:"port" default:"8999"`
		MaxURIBytes  int   `yaml:"max_uri_bytes" default:"8192"`
		MaxBodyBytes int64 `yaml:"max_body_bytes" default:"1048576"`
	} `yaml:"renderer"`

	Cache struct {
		Backend    string        `yaml:"backend" default:"memory"` // memory, redis or none
		MaxEntries int           `yaml:"max_entries" default:"256"`
		TTL        time.Duration `yaml:"ttl" default:"6h"`
	} `yaml:"cache"`

	Artifacts struct {
		Backend   string `yaml:"backend" default:"local"` // local, spaces or gcs
		OutputDir string `yaml:"output_dir" default:"output"`
		Prefix    string `yaml:"prefix" default:"resumes"`
		GCS       struct {
			Bucket string `yaml:"bucket"`
		} `yaml:"gcs"`
	} `yaml:"artifacts"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`

		Adapters []LogAdapterConfig `yaml:"adapters"`
	} `yaml:"logging"`

	Redis struct {
		URL      string        `yaml:"url" default:"redis://localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" default:"0"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"redis"`

	DigitalOcean struct {
		Spaces struct {
			BucketURL       string `yaml:"bucket_url"`
			CDNEndpoint     string `yaml:"cdn_endpoint"`
			AccessKeyID     string `yaml:"access_key_id"`
			AccessKeySecret string `yaml:"access_key_secret"`
			Region          string `yaml:"region" default:"blr1"`
			BucketName      string `yaml:"bucket_name"`
		} `yaml:"spaces"`
	} `yaml:"digitalocean"`

	Callback struct {
		ServerAddress string        `yaml:"server_address"`
		Timeout       time.Duration `yaml:"timeout" default:"30s"`
		MaxRetries    int           `yaml:"max_retries" default:"3"`
		Enabled       bool          `yaml:"enabled" default:"false"`
	} `yaml:"callback"`
}

// LogAdapterConfig is one logging sink; Options are adapter specific.
type LogAdapterConfig struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"`
	Enabled bool                   `yaml:"enabled"`
	Options map[string]interface{} `yaml:"options"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := Defaults()

	// Load from YAML file if it exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			yamlContent := expandEnvVars(string(data))

			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, err
			}
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	return config, nil
}

// Defaults returns a configuration populated with built-in defaults only.
func Defaults() *Config {
	config := &Config{}

	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 30 * time.Second
	config.Server.IdleTimeout = 60 * time.Second

	config.Workers.PoolSize = 4
	config.Workers.QueueSize = 100

	config.BackgroundTasks.TaskTimeout = 300 * time.Second
	config.BackgroundTasks.CleanupInterval = 1 * time.Hour
	config.BackgroundTasks.MaxTaskAge = 24 * time.Hour

	config.LLM.Provider = "claude"
	config.LLM.Model = "claude-3-7-sonnet-latest"
	config.LLM.MaxTokens = 8192
	config.LLM.Temperature = 0.2
	config.LLM.Timeout = 120 * time.Second
	config.LLM.Theme = "DEFAULT_THEME"

	config.LaTeX.Engine = "pdflatex"
	config.LaTeX.RemoteMaxBytes = 7000
	config.LaTeX.RemoteRate = 2
	config.LaTeX.RemoteBurst = 4
	config.LaTeX.Timeout = 30 * time.Second
	config.LaTeX.MaxOutputBytes = 1 << 20
	config.LaTeX.LogTailLines = 40

	config.Pipeline.PageBudget = 2
	config.Pipeline.MaxRetries = 2
	config.Pipeline.MaxCompressionRounds = 1

	config.Progress.Heartbeat = 15 * time.Second
	config.Progress.Retention = 10 * time.Minute
	config.Progress.History = 32
	config.Progress.SweepInterval = time.Minute

	config.Renderer.Port = 8999
	config.Renderer.MaxURIBytes = 8192
	config.Renderer.MaxBodyBytes = 1 << 20

	config.Cache.Backend = "memory"
	config.Cache.MaxEntries = 256
	config.Cache.TTL = 6 * time.Hour

	config.Artifacts.Backend = "local"
	config.Artifacts.OutputDir = "output"
	config.Artifacts.Prefix = "resumes"

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.DB = 0
	config.Redis.Timeout = 5 * time.Second

	config.DigitalOcean.Spaces.Region = "blr1"

	config.Callback.Timeout = 30 * time.Second
	config.Callback.MaxRetries = 3

	return config
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		c.LLM.APIKey = apiKey
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if timeout := os.Getenv("LLM_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.LLM.Timeout = d
		}
	}

	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		c.LLM.BaseURL = baseURL
	}

	if theme := os.Getenv("RESUME_THEME"); theme != "" {
		c.LLM.Theme = theme
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	// LaTeX backend configuration
	if engine := os.Getenv("LATEX_ENGINE"); engine != "" {
		c.LaTeX.Engine = engine
	}

	if rendererURL := os.Getenv("PDF_RENDERER_URL"); rendererURL != "" {
		c.LaTeX.RendererURL = rendererURL
	}

	if localOnly := os.Getenv("LATEX_LOCAL_ONLY"); localOnly != "" {
		c.LaTeX.LocalOnly = localOnly == "true" || localOnly == "1"
	}

	if maxBytes := os.Getenv("LATEX_REMOTE_MAX_BYTES"); maxBytes != "" {
		if n, err := strconv.Atoi(maxBytes); err == nil {
			c.LaTeX.RemoteMaxBytes = n
		}
	}

	if timeout := os.Getenv("LATEX_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.LaTeX.Timeout = d
		}
	}

	if tempDir := os.Getenv("LATEX_TEMP_DIR"); tempDir != "" {
		c.LaTeX.TempDir = tempDir
	}

	if sandbox := os.Getenv("LATEX_SANDBOX"); sandbox != "" {
		c.LaTeX.Sandbox = sandbox == "true" || sandbox == "1"
	}

	// Pipeline bounds
	if budget := os.Getenv("PAGE_BUDGET"); budget != "" {
		if n, err := strconv.Atoi(budget); err == nil {
			c.Pipeline.PageBudget = n
		}
	}

	if retries := os.Getenv("LATEX_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			c.Pipeline.MaxRetries = n
		}
	}

	if rounds := os.Getenv("MAX_COMPRESSION_ROUNDS"); rounds != "" {
		if n, err := strconv.Atoi(rounds); err == nil {
			c.Pipeline.MaxCompressionRounds = n
		}
	}

	// Renderer service
	if maxURI := os.Getenv("MAX_URI_BYTES"); maxURI != "" {
		if n, err := strconv.Atoi(maxURI); err == nil {
			c.Renderer.MaxURIBytes = n
		}
	}

	if rendererPort := os.Getenv("RENDERER_PORT"); rendererPort != "" {
		if n, err := strconv.Atoi(rendererPort); err == nil {
			c.Renderer.Port = n
		}
	}

	// Cache and artifacts
	if cacheBackend := os.Getenv("CACHE_BACKEND"); cacheBackend != "" {
		c.Cache.Backend = cacheBackend
	}

	if cacheTTL := os.Getenv("CACHE_TTL"); cacheTTL != "" {
		if d, err := time.ParseDuration(cacheTTL); err == nil {
			c.Cache.TTL = d
		}
	}

	if artifactBackend := os.Getenv("ARTIFACT_BACKEND"); artifactBackend != "" {
		c.Artifacts.Backend = artifactBackend
	}

	if outputDir := os.Getenv("OUTPUT_DIR"); outputDir != "" {
		c.Artifacts.OutputDir = outputDir
	}

	if gcsBucket := os.Getenv("GCS_BUCKET"); gcsBucket != "" {
		c.Artifacts.GCS.Bucket = gcsBucket
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if redisTimeout := os.Getenv("REDIS_TIMEOUT"); redisTimeout != "" {
		if timeout, err := time.ParseDuration(redisTimeout); err == nil {
			c.Redis.Timeout = timeout
		}
	}

	// DigitalOcean Spaces configuration
	if bucketURL := os.Getenv("BUCKET_URL"); bucketURL != "" {
		c.DigitalOcean.Spaces.BucketURL = bucketURL
	}

	if cdnEndpoint := os.Getenv("BUCKET_CDN_ENDPOINT"); cdnEndpoint != "" {
		c.DigitalOcean.Spaces.CDNEndpoint = cdnEndpoint
	}

	if accessKeyID := os.Getenv("BUCKET_ACCESS_KEY_ID"); accessKeyID != "" {
		c.DigitalOcean.Spaces.AccessKeyID = accessKeyID
	}

	if accessKeySecret := os.Getenv("BUCKET_ACCESS_KEY_SECRET"); accessKeySecret != "" {
		c.DigitalOcean.Spaces.AccessKeySecret = accessKeySecret
	}

	if region := os.Getenv("BUCKET_REGION"); region != "" {
		c.DigitalOcean.Spaces.Region = region
	}

	if bucketName := os.Getenv("BUCKET_NAME"); bucketName != "" {
		c.DigitalOcean.Spaces.BucketName = bucketName
	}

	// Callback configuration
	if callbackServerAddr := os.Getenv("CALLBACK_SERVER_ADDRESS"); callbackServerAddr != "" {
		c.Callback.ServerAddress = callbackServerAddr
	}

	if callbackTimeout := os.Getenv("CALLBACK_TIMEOUT"); callbackTimeout != "" {
		if timeout, err := time.ParseDuration(callbackTimeout); err == nil {
			c.Callback.Timeout = timeout
		}
	}

	if callbackMaxRetries := os.Getenv("CALLBACK_MAX_RETRIES"); callbackMaxRetries != "" {
		if retries, err := strconv.Atoi(callbackMaxRetries); err == nil {
			c.Callback.MaxRetries = retries
		}
	}

	if callbackEnabled := os.Getenv("CALLBACK_ENABLED"); callbackEnabled != "" {
		c.Callback.Enabled = callbackEnabled == "true" || callbackEnabled == "1"
	}

	c.loadLoggingAdapterEnvVars()
}

// loadLoggingAdapterEnvVars loads environment variables for logging adapters
func (c *Config) loadLoggingAdapterEnvVars() {
	for i := range c.Logging.Adapters {
		adapter := &c.Logging.Adapters[i]

		switch adapter.Type {
		case "file":
			if path := os.Getenv("LOG_FILE_PATH"); path != "" {
				if adapter.Options == nil {
					adapter.Options = make(map[string]interface{})
				}
				adapter.Options["file_path"] = path
			}
		case "stdout":
			if colorized := os.Getenv("LOG_COLORIZED"); colorized != "" {
				if adapter.Options == nil {
					adapter.Options = make(map[string]interface{})
				}
				adapter.Options["colorized"] = colorized == "true" || colorized == "1"
			}
		}
	}
}
