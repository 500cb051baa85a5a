package config

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"flatsift/geo"
	"flatsift/models"
)

type Config struct {
	Passes      int
	DataDir     string
	DBPath      string
	DatabaseURL string
	ProxyURL    string

	Journey    JourneyConfig
	Duplicates DuplicatesConfig
	Images     ImagesConfig
	Scheduler  SchedulerConfig
	Log        LogConfig

	PostalCodeDistance float64
	StationDistance    float64
	Precedence         string

	ConstraintsDir string
	BackendsDir    string
	Constraints    map[string]*models.Constraint
	Backends       map[string]*BackendConfig
}

type JourneyConfig struct {
	NavitiaKey string
	MapboxKey  string
}

type DuplicatesConfig struct {
	Threshold          int
	ImageHashThreshold int
	PhotoWorkers       int
}

type ImagesConfig struct {
	MaxItems int
	Store    string // "disk", "s3" or "none"
	S3       S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type LogConfig struct {
	Level  string
	Format string
	Path   string
}

// BackendConfig declares a listing source
type BackendConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Handler string `yaml:"handler"` // "api" or "dump"
	Source  string `yaml:"source"`  // base URL or dump file path
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")
	cfg := &Config{
		Passes:      getEnvInt("PASSES", 3),
		DataDir:     dataDir,
		DBPath:      getEnv("DB_PATH", filepath.Join(dataDir, "flatsift.db")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ProxyURL:    os.Getenv("PROXY_URL"),
		Journey: JourneyConfig{
			NavitiaKey: os.Getenv("NAVITIA_API_KEY"),
			MapboxKey:  os.Getenv("MAPBOX_API_KEY"),
		},
		Duplicates: DuplicatesConfig{
			Threshold:          getEnvInt("DUPLICATE_THRESHOLD", 15),
			ImageHashThreshold: getEnvInt("DUPLICATE_IMAGE_HASH_THRESHOLD", 10),
			PhotoWorkers:       getEnvInt("PHOTO_WORKERS", 8),
		},
		Images: ImagesConfig{
			MaxItems: getEnvInt("IMAGE_CACHE_MAX_ITEMS", 200),
			Store:    getEnv("IMAGE_STORE", "disk"),
			S3: S3Config{
				Bucket:          os.Getenv("S3_BUCKET"),
				Region:          getEnv("S3_REGION", "eu-west-3"),
				Endpoint:        os.Getenv("S3_ENDPOINT"),
				AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
				Prefix:          getEnv("S3_PREFIX", "images/"),
			},
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCHEDULE_CRON"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: os.Getenv("LOG_FORMAT"),
			Path:   os.Getenv("LOG_PATH"),
		},
		PostalCodeDistance: getEnvFloat("MAX_DISTANCE_HOUSING_POSTAL_CODE", 20000),
		StationDistance:    getEnvFloat("MAX_DISTANCE_HOUSING_STATION", 1500),
		Precedence:         os.Getenv("BACKENDS_PRECEDENCE"),
		ConstraintsDir:     getEnv("CONSTRAINTS_DIR", "config/constraints"),
		BackendsDir:        getEnv("BACKENDS_DIR", "config/backends"),
	}

	if interval := os.Getenv("SCHEDULE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, eris.Wrapf(err, "SCHEDULE_INTERVAL %q", interval)
		}
		cfg.Scheduler.Interval = d
	}

	constraints, err := LoadConstraints(cfg.ConstraintsDir)
	if err != nil {
		return nil, err
	}
	cfg.Constraints = constraints

	backends, err := LoadBackends(cfg.BackendsDir)
	if err != nil {
		return nil, err
	}
	cfg.Backends = backends

	return cfg, nil
}

// LoadConstraints reads every *.yaml file of dir. A file holds one constraint;
// its name defaults to the file name without extension. A missing directory
// yields no constraints.
func LoadConstraints(dir string) (map[string]*models.Constraint, error) {
	out := make(map[string]*models.Constraint)
	err := eachYAML(dir, func(path string, data []byte) error {
		var c models.Constraint
		if err := yaml.Unmarshal(data, &c); err != nil {
			return eris.Wrapf(err, "parse constraint %s", path)
		}
		if c.Name == "" {
			c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		if _, dup := out[c.Name]; dup {
			return eris.Errorf("constraint %q defined twice (%s)", c.Name, path)
		}
		out[c.Name] = &c
		return nil
	})
	return out, err
}

func LoadBackends(dir string) (map[string]*BackendConfig, error) {
	out := make(map[string]*BackendConfig)
	err := eachYAML(dir, func(path string, data []byte) error {
		var b BackendConfig
		if err := yaml.Unmarshal(data, &b); err != nil {
			return eris.Wrapf(err, "parse backend %s", path)
		}
		if b.ID == "" {
			b.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		out[b.ID] = &b
		return nil
	})
	return out, err
}

func eachYAML(dir string, fn func(path string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "read %s", dir)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}
		if err := fn(path, data); err != nil {
			return err
		}
	}
	return nil
}

// ConstraintNames returns the configured constraint names, sorted
func (c *Config) ConstraintNames() []string {
	names := make([]string, 0, len(c.Constraints))
	for name := range c.Constraints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration values without touching reference data
func (c *Config) Validate() error {
	if c.Passes < 0 || c.Passes > 3 {
		return eris.Errorf("passes must be between 0 and 3, got %d", c.Passes)
	}
	if c.Duplicates.Threshold <= 0 {
		return eris.Errorf("duplicate threshold must be positive, got %d", c.Duplicates.Threshold)
	}
	switch c.Images.Store {
	case "disk", "none":
	case "s3":
		if c.Images.S3.Bucket == "" {
			return eris.New("IMAGE_STORE=s3 needs S3_BUCKET")
		}
	default:
		return eris.Errorf("unknown image store %q", c.Images.Store)
	}
	if len(c.Constraints) == 0 {
		return eris.Errorf("no constraint found in %s", c.ConstraintsDir)
	}
	for _, name := range c.ConstraintNames() {
		if err := ValidateConstraint(c.Constraints[name]); err != nil {
			return eris.Wrapf(err, "constraint %s", name)
		}
	}
	for id, b := range c.Backends {
		if b.Source == "" {
			return eris.Errorf("backend %s has no source", id)
		}
	}
	return nil
}

func ValidateConstraint(c *models.Constraint) error {
	switch models.PostType(strings.ToUpper(string(c.Type))) {
	case models.PostRent, models.PostSale, models.PostSharing:
		c.Type = models.PostType(strings.ToUpper(string(c.Type)))
	default:
		return eris.Errorf("unknown type %q", c.Type)
	}

	if len(c.HouseTypes) == 0 {
		return eris.New("house_types is empty")
	}
	for i, ht := range c.HouseTypes {
		switch t := models.HouseType(strings.ToUpper(string(ht))); t {
		case models.HouseApart, models.HouseHouse, models.HouseParking,
			models.HouseLand, models.HouseOther, models.HouseUnknown:
			c.HouseTypes[i] = t
		default:
			return eris.Errorf("unknown house type %q", ht)
		}
	}

	if len(c.PostalCodes) == 0 {
		return eris.New("postal_codes is empty")
	}

	if c.MinimumPhotos != nil && *c.MinimumPhotos < 0 {
		return eris.Errorf("minimum_nb_photos is negative: %d", *c.MinimumPhotos)
	}

	if err := checkBounds("area", c.Area); err != nil {
		return err
	}
	if err := checkBounds("cost", c.Cost); err != nil {
		return err
	}
	if err := checkBounds("rooms", c.Rooms); err != nil {
		return err
	}
	if err := checkBounds("bedrooms", c.Bedrooms); err != nil {
		return err
	}

	for place, target := range c.TimeTo {
		if err := checkBounds("time_to "+place, target.Time); err != nil {
			return err
		}
		mode, err := models.ParseTravelMode(string(target.Mode))
		if err != nil {
			return eris.Wrapf(err, "time_to %s", place)
		}
		target.Mode = mode
		c.TimeTo[place] = target
	}
	return nil
}

// checkBounds accepts unbounded sides; set ones are non negative and min < max
func checkBounds[T models.Number](field string, i models.Interval[T]) error {
	if i.Min != nil && *i.Min < 0 {
		return eris.Errorf("%s: negative minimum %v", field, *i.Min)
	}
	if i.Max != nil && *i.Max < 0 {
		return eris.Errorf("%s: negative maximum %v", field, *i.Max)
	}
	if i.Min != nil && i.Max != nil && *i.Max <= *i.Min {
		return eris.Errorf("%s: maximum %v is not above minimum %v", field, *i.Max, *i.Min)
	}
	return nil
}

// CheckPostalCodes verifies every constraint postal code exists in the reference data
func (c *Config) CheckPostalCodes(ctx context.Context, dataset geo.Dataset) error {
	for _, name := range c.ConstraintNames() {
		constraint := c.Constraints[name]
		pcs, err := dataset.PostalCodes(ctx, geo.AreasForPostalCodes(constraint.PostalCodes))
		if err != nil {
			return eris.Wrapf(err, "constraint %s", name)
		}
		known := make(map[string]bool, len(pcs))
		for _, pc := range pcs {
			known[pc.PostalCode] = true
		}
		for _, code := range constraint.PostalCodes {
			if !known[code] {
				return eris.Errorf("constraint %s: unknown postal code %s", name, code)
			}
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
