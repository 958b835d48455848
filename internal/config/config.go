package config

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCourantNumber    = 0.2
	DefaultDerivativeFactor = 0.2
	DefaultInitialStep      = 0.03
	DefaultMaxStep          = 10.0
	DefaultDuration         = 10.0
	DefaultOutputInterval   = 1.0
	DefaultParticles        = 1000
)

type Config struct {
	Run          RunConfig          `yaml:"run"`
	Timestepping TimesteppingConfig `yaml:"timestepping"`
	Output       OutputConfig       `yaml:"output"`
}

type RunConfig struct {
	Duration       float64 `yaml:"duration"`
	OutputInterval float64 `yaml:"output_interval"`
	Particles      int     `yaml:"particles"`
	Scheduler      string  `yaml:"scheduler"`
	Threads        int     `yaml:"threads"`
}

type TimesteppingConfig struct {
	Integrator       string   `yaml:"integrator"`
	InitialStep      float64  `yaml:"initial_step"`
	MaxStep          float64  `yaml:"max_step"`
	CourantNumber    float64  `yaml:"courant_number"`
	DerivativeFactor float64  `yaml:"derivative_factor"`
	MeanPower        float64  `yaml:"mean_power"`
	MaxChange        float64  `yaml:"max_change"`
	Criteria         []string `yaml:"criteria"`
	SaveSteps        bool     `yaml:"save_particle_timesteps"`
}

type OutputConfig struct {
	Directory string `yaml:"directory"`
	RunName   string `yaml:"run_name"`
	Compact   bool   `yaml:"compact"`
}

func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Duration:       DefaultDuration,
			OutputInterval: DefaultOutputInterval,
			Particles:      DefaultParticles,
			Scheduler:      "pool",
		},
		Timestepping: TimesteppingConfig{
			Integrator:       "predictor-corrector",
			InitialStep:      DefaultInitialStep,
			MaxStep:          DefaultMaxStep,
			CourantNumber:    DefaultCourantNumber,
			DerivativeFactor: DefaultDerivativeFactor,
			// strongly negative powers degrade the candidate mean to a
			// strict minimum
			MeanPower: math.Inf(-1),
			MaxChange: math.Inf(1),
			Criteria:  []string{"courant", "acceleration", "derivative"},
		},
		Output: OutputConfig{
			Directory: "runs",
			RunName:   "orbit",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
