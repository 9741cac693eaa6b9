package spec

type Config struct {
	Version int          `yaml:"version"`
	Data    DataConfig   `yaml:"data"`
	Model   ModelConfig  `yaml:"model"`
	Run     RunConfig    `yaml:"run"`
	Loss    LossConfig   `yaml:"loss"`
	Output  OutputConfig `yaml:"output"`
}

type DataConfig struct {
	Vocab      string            `yaml:"vocab"`
	Partitions []PartitionConfig `yaml:"partitions"`
}

// PartitionConfig names a dataset split. Loss and Score select which passes run over it.
type PartitionConfig struct {
	Name     string `yaml:"name"`
	Examples string `yaml:"examples"`
	Helpers  string `yaml:"helpers"`
	Loss     bool   `yaml:"loss"`
	Score    bool   `yaml:"score"`
}

type ModelConfig struct {
	Checkpoint   string  `yaml:"checkpoint"`
	DModel       int     `yaml:"d_model"`
	MaxPositions int     `yaml:"max_positions"`
	Dropout      float64 `yaml:"dropout"`
}

type RunConfig struct {
	Task            string   `yaml:"task"`
	BatchSize       int      `yaml:"batch_size"`
	Seed            *uint64  `yaml:"seed"`
	Device          string   `yaml:"device"`
	MaxDecodeLength int      `yaml:"max_decode_length"`
	ScoreTasks      []string `yaml:"score_tasks"`
}

// RandomSeed returns the configured seed. An absent seed reads as zero until
// normalization fills in the default.
func (r RunConfig) RandomSeed() uint64 {
	if r.Seed == nil {
		return 0
	}
	return *r.Seed
}

type LossConfig struct {
	Policy  string             `yaml:"policy"`
	Weights map[string]float64 `yaml:"weights"`
	LogVars map[string]float64 `yaml:"log_vars"`
}

type OutputConfig struct {
	Dir     string `yaml:"dir"`
	LogFile string `yaml:"log_file"`
	DuckDB  string `yaml:"duckdb"`
	Report  *bool  `yaml:"report"`
}

// ReportEnabled reports whether an HTML report should be rendered; it defaults to true.
func (o OutputConfig) ReportEnabled() bool {
	return o.Report == nil || *o.Report
}
