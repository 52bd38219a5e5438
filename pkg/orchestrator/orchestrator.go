package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/YoungRaeKimm/CS492-project/pkg/config"
	"github.com/YoungRaeKimm/CS492-project/pkg/database"
	"github.com/YoungRaeKimm/CS492-project/pkg/elastic"
	"github.com/YoungRaeKimm/CS492-project/pkg/launcher"

	"github.com/sirupsen/logrus"
)

var DebugLog func(string, ...interface{})

// test seam
var cleanWorkspace = launcher.CleanWorkspace

type Orchestrator struct {
	config        *config.Config
	configManager *config.Manager
	logger        *logrus.Logger
	db            *database.DB
}

type RunOptions struct {
	Config    launcher.RunConfiguration
	SkipClean bool
	DryRun    bool
}

type RunResult struct {
	Config    launcher.RunConfiguration
	Args      []string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	ExitCode  int
	Success   bool
	Errors    []error
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func NewOrchestrator(configPath string) (*Orchestrator, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&customFormatter{})

	configManager := config.NewManager(configPath)
	if err := configManager.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := configManager.GetConfig()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Warnf("Database initialization failed: %v", err)
	}

	return &Orchestrator{
		config:        cfg,
		configManager: configManager,
		logger:        logger,
		db:            db,
	}, nil
}

// RunExperiment reproduces one training invocation: clean the workspace,
// launch the trainer, wait for it, record the outcome. The trainer's exit
// status passes through RunResult.ExitCode unchanged.
func (o *Orchestrator) RunExperiment(options RunOptions) (*RunResult, error) {
	cfg := options.Config

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}

	result := &RunResult{
		Config:  cfg,
		Args:    cfg.Args(),
		Success: false,
		Errors:  []error{},
	}

	if options.DryRun {
		result.Success = true
		return result, nil
	}

	l, err := launcher.New(
		o.config.Trainer.PythonBin,
		o.config.Trainer.Script,
		o.config.Trainer.WorkDir,
		DebugLog != nil,
	)
	if err != nil {
		return nil, err
	}

	if !options.SkipClean && o.config.Trainer.CleanCache {
		removed, err := cleanWorkspace(l.WorkDir, DebugLog != nil)
		if err != nil {
			// stale caches never affect run correctness
			o.logger.Warnf("Workspace cleanup failed, continuing: %v", err)
		} else if DebugLog != nil {
			DebugLog("workspace clean, %d stale entries removed", removed)
		}
	}

	runID, err := o.db.RecordRun(cfg)
	if err != nil {
		o.logger.Warnf("Failed to record run in database: %v", err)
	}

	ctx := context.Background()
	if o.config.DefaultSettings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.config.DefaultSettings.Timeout)*time.Minute)
		defer cancel()
	}

	o.logger.Infof("Launching trainer: dataset=%s ILtype=%s split=%d device=%d",
		cfg.Dataset, cfg.ILType, cfg.Split, cfg.Device)

	result.StartTime = time.Now()
	exitCode, launchErr := l.Launch(ctx, cfg)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.ExitCode = exitCode
	result.Success = exitCode == 0

	if launchErr != nil {
		result.Errors = append(result.Errors, launchErr)
		o.logger.Errorf("Trainer exited with status %d: %v", exitCode, launchErr)
	}

	if err := o.db.CompleteRun(runID, exitCode); err != nil {
		o.logger.Warnf("Failed to update run in database: %v", err)
	}

	if o.config.Elastic.Enabled {
		if err := o.indexRun(result); err != nil {
			o.logger.Warnf("Failed to index run in elasticsearch: %v", err)
		}
	}

	return result, nil
}

func (o *Orchestrator) indexRun(result *RunResult) error {
	client, err := elastic.New(elastic.Config{
		URL:      o.config.Elastic.URL,
		Username: o.config.Elastic.Username,
		Password: o.config.Elastic.Password,
		Index:    o.config.Elastic.Index,
	})
	if err != nil {
		return err
	}

	cfg := result.Config
	doc := elastic.RunDocument{
		Dataset:    cfg.Dataset,
		ILType:     cfg.ILType,
		Split:      cfg.Split,
		Device:     cfg.Device,
		Alpha:      cfg.Alpha,
		Beta:       cfg.Beta,
		Gamma:      cfg.Gamma,
		MemorySize: cfg.MemorySize,
		RT:         cfg.RT,
		NumHead:    cfg.NumHead,
		HiddenDim:  cfg.HiddenDim,
		Args:       strings.Join(result.Args, " "),
		ExitCode:   result.ExitCode,
		Success:    result.Success,
		StartedAt:  result.StartTime,
		FinishedAt: result.EndTime,
		DurationMS: result.Duration.Milliseconds(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return client.IndexRun(ctx, doc)
}

func (o *Orchestrator) GetConfig() *config.Config {
	return o.config
}

func (o *Orchestrator) GetDB() *database.DB {
	return o.db
}
