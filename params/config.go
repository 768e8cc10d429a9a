package params

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid training config")

// LoadConfig layers an optional YAML file and TEXTCNN_* environment variables
// over the built-in constants in Config. An empty path only reads the
// environment.
func LoadConfig(configPath string) (*TrainingConfig, error) {
	v := viper.New()
	setDefaults(v, Config)

	v.SetEnvPrefix("TEXTCNN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg TrainingConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, c TrainingConfig) {
	v.SetDefault("maxNbWords", c.MaxNbWords)
	v.SetDefault("maxSequenceLength", c.MaxSequenceLength)
	v.SetDefault("validationSplit", c.ValidationSplit)
	v.SetDefault("embeddingDim", c.EmbeddingDim)
	v.SetDefault("embeddingDir", c.EmbeddingDir)
	v.SetDefault("embeddingType", c.EmbeddingType)

	v.SetDefault("kernelSizes", c.KernelSizes)
	v.SetDefault("filters", c.Filters)
	v.SetDefault("denseUnits", c.DenseUnits)
	v.SetDefault("dropoutRate", c.DropoutRate)
	v.SetDefault("numClasses", c.NumClasses)

	v.SetDefault("folds", c.Folds)
	v.SetDefault("epochs", c.Epochs)
	v.SetDefault("batchSize", c.BatchSize)
	v.SetDefault("learningRate", c.LearningRate)
	v.SetDefault("adamBeta1", c.AdamBeta1)
	v.SetDefault("adamBeta2", c.AdamBeta2)
	v.SetDefault("adamEps", c.AdamEps)
	v.SetDefault("weightDecay", c.WeightDecay)
	v.SetDefault("gradClip", c.GradClip)
	v.SetDefault("patience", c.Patience)
	v.SetDefault("monitor", c.Monitor)
	v.SetDefault("seed", c.Seed)
	v.SetDefault("workers", c.Workers)

	v.SetDefault("datasetPath", c.DatasetPath)
	v.SetDefault("outputPrefix", c.OutputPrefix)
	v.SetDefault("plotCurves", c.PlotCurves)
	v.SetDefault("logLevel", c.LogLevel)
}

// Validate rejects configs the model or trainer cannot run with.
func (c TrainingConfig) Validate() error {
	switch {
	case c.MaxNbWords < 2:
		return fmt.Errorf("%w: maxNbWords must be >= 2, got %d", ErrInvalidConfig, c.MaxNbWords)
	case c.MaxSequenceLength < 1:
		return fmt.Errorf("%w: maxSequenceLength must be positive, got %d", ErrInvalidConfig, c.MaxSequenceLength)
	case c.EmbeddingDim < 1:
		return fmt.Errorf("%w: embeddingDim must be positive, got %d", ErrInvalidConfig, c.EmbeddingDim)
	case c.ValidationSplit <= 0 || c.ValidationSplit >= 1:
		return fmt.Errorf("%w: validationSplit must be in (0,1), got %g", ErrInvalidConfig, c.ValidationSplit)
	case len(c.KernelSizes) == 0:
		return fmt.Errorf("%w: at least one kernel size is required", ErrInvalidConfig)
	case c.Filters < 1 || c.DenseUnits < 1:
		return fmt.Errorf("%w: filters and denseUnits must be positive", ErrInvalidConfig)
	case c.DropoutRate < 0 || c.DropoutRate >= 1:
		return fmt.Errorf("%w: dropoutRate must be in [0,1), got %g", ErrInvalidConfig, c.DropoutRate)
	case c.NumClasses < 2:
		return fmt.Errorf("%w: numClasses must be >= 2, got %d", ErrInvalidConfig, c.NumClasses)
	case c.Folds < 2:
		return fmt.Errorf("%w: folds must be >= 2, got %d", ErrInvalidConfig, c.Folds)
	case c.Epochs < 1 || c.BatchSize < 1:
		return fmt.Errorf("%w: epochs and batchSize must be positive", ErrInvalidConfig)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learningRate must be positive, got %g", ErrInvalidConfig, c.LearningRate)
	case c.Monitor != MonitorValLoss && c.Monitor != MonitorValAcc:
		return fmt.Errorf("%w: monitor must be %q or %q, got %q", ErrInvalidConfig, MonitorValLoss, MonitorValAcc, c.Monitor)
	}
	for _, k := range c.KernelSizes {
		if k < 1 {
			return fmt.Errorf("%w: kernel sizes must be positive, got %d", ErrInvalidConfig, k)
		}
	}
	return nil
}
