package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "RandomForestClassifier", "DecisionTreeClassifier"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "save", "load"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "ensemble", "train", "registry"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
	DatasetKey  = "data.name"
)

// Performance Metrics
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	OOBScoreKey   = "metrics.oob_score"
)

// Forest structure
const (
	EstimatorsKey = "forest.n_estimators"
	TreeIndexKey  = "forest.tree"
	DepthKey      = "tree.depth"
	LeavesKey     = "tree.leaves"
)

// Artifact and run bookkeeping
const (
	ArtifactPathKey = "artifact.path"
	ArtifactSizeKey = "artifact.size_bytes"
	ArtifactHashKey = "artifact.hash"
	RunIDKey        = "run.id"
)

// Error Context
const (
	ErrorTypeKey = "error.type"

	// StacktraceKey is filled automatically from cockroachdb/errors stacks.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	ConfigPathKey = "config.path"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationSave    = "save"
	OperationLoad    = "load"

	PhaseTraining   = "training"
	PhaseEvaluation = "evaluation"
	PhasePersist    = "persist"
)
