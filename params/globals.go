package params

// Vocabulary is the word index built from the training corpus.
// IDToToken[0] is the padding slot and never maps back to a word.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

// Size is the number of real words (padding excluded).
func (v Vocabulary) Size() int {
	if len(v.IDToToken) == 0 {
		return 0
	}
	return len(v.IDToToken) - 1
}

type TrainingConfig struct {
	// Text and embedding shape
	MaxNbWords        int     `mapstructure:"maxNbWords"`        // vocabulary cap
	MaxSequenceLength int     `mapstructure:"maxSequenceLength"` // tokens per sample after padding
	ValidationSplit   float64 `mapstructure:"validationSplit"`   // holdout fraction for single split training
	EmbeddingDim      int     `mapstructure:"embeddingDim"`
	EmbeddingDir      string  `mapstructure:"embeddingDir"`
	EmbeddingType     string  `mapstructure:"embeddingType"`

	// Network
	KernelSizes []int   `mapstructure:"kernelSizes"` // one conv branch per width, in concat order
	Filters     int     `mapstructure:"filters"`     // output channels per branch
	DenseUnits  int     `mapstructure:"denseUnits"`
	DropoutRate float64 `mapstructure:"dropoutRate"`
	NumClasses  int     `mapstructure:"numClasses"`

	// Optimization
	Folds        int     `mapstructure:"folds"`
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batchSize"`
	LearningRate float64 `mapstructure:"learningRate"`
	AdamBeta1    float64 `mapstructure:"adamBeta1"` // default 0.9
	AdamBeta2    float64 `mapstructure:"adamBeta2"` // default 0.999
	AdamEps      float64 `mapstructure:"adamEps"`   // default 1e-7
	WeightDecay  float64 `mapstructure:"weightDecay"`
	GradClip     float64 `mapstructure:"gradClip"` // <=0 disables
	Patience     int     `mapstructure:"patience"` // 0 trains the full epoch budget
	Monitor      string  `mapstructure:"monitor"`  // val_loss or val_acc
	Seed         int64   `mapstructure:"seed"`
	Workers      int     `mapstructure:"workers"` // gradient workers per batch, 0 = GOMAXPROCS

	// Files
	DatasetPath  string `mapstructure:"datasetPath"`
	OutputPrefix string `mapstructure:"outputPrefix"`
	PlotCurves   bool   `mapstructure:"plotCurves"`

	LogLevel string `mapstructure:"logLevel"`
}

// EmbeddingPath joins the embedding directory and file name.
func (c TrainingConfig) EmbeddingPath() string {
	return c.EmbeddingDir + "/" + c.EmbeddingType
}

// Channels is the width of the concatenated conv output.
func (c TrainingConfig) Channels() int {
	return c.Filters * len(c.KernelSizes)
}

const (
	MonitorValLoss = "val_loss"
	MonitorValAcc  = "val_acc"
)

var Config = TrainingConfig{
	MaxNbWords:        16000,
	MaxSequenceLength: 140,
	ValidationSplit:   0.1,
	EmbeddingDim:      300,
	EmbeddingDir:      "embedding",
	EmbeddingType:     "glove.6B.300d.txt", // glove.6B.<dim>d.txt

	KernelSizes: []int{5, 3, 7, 4},
	Filters:     512,
	DenseUnits:  512,
	DropoutRate: 0.5,
	NumClasses:  3,

	Folds:        10,
	Epochs:       50,
	BatchSize:    32,
	LearningRate: 0.001,
	AdamBeta1:    0.9,
	AdamBeta2:    0.999,
	AdamEps:      1e-7,
	WeightDecay:  0,
	GradClip:     0,
	Patience:     0,
	Monitor:      MonitorValLoss,
	Seed:         1337,
	Workers:      0,

	DatasetPath:  "data/both.csv",
	OutputPrefix: "n_conv/n_conv-model",
	PlotCurves:   true,

	LogLevel: "info",
}
