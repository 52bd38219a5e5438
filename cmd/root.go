package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/YoungRaeKimm/CS492-project/pkg/config"
	"github.com/YoungRaeKimm/CS492-project/pkg/database"
	"github.com/YoungRaeKimm/CS492-project/pkg/launcher"
	"github.com/YoungRaeKimm/CS492-project/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configFile string
	device     int
	ilType     string
	dataset    string
	split      int
	alpha      float64
	beta       float64
	gamma      float64
	memorySize int
	rt         float64
	numHead    int
	hiddenDim  int
	resume     bool
	resumeTask int
	resumeTime string
	outputFile string
	jsonFormat bool
	silent     bool
	verbose    bool
	noClean    bool
	dryRun     bool
)

var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "lvtrun",
	Short: "reproducible experiment launcher for LVT incremental-learning training",
	Long:  `lvtrun pins a training run to one accelerator, cleans stale caches, and launches the LVT trainer with a fixed hyperparameter set`,
	Run:   runExperiment,
}

func Execute() {
	hasSilentFlag := false
	for i, arg := range os.Args {
		if arg == "-dataset" {
			os.Args[i] = "--dataset"
		}
		if arg == "-silent" {
			os.Args[i] = "--silent"
			hasSilentFlag = true
		}
		if arg == "-split" {
			os.Args[i] = "--split"
		}
		if arg == "-resume" {
			os.Args[i] = "--resume"
		}
		if arg == "-json" {
			os.Args[i] = "--json"
		}
	}

	if !hasSilentFlag {
		printBanner()
	}

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func DebugLog(format string, args ...interface{}) {
	if Verbose {
		fmt.Printf("[DBG] "+format+"\n", args...)
	}
}

func setDebugLogFunctions() {
	config.DebugLog = DebugLog
	orchestrator.DebugLog = DebugLog
	database.DebugLog = DebugLog
}

func init() {
	rootCmd.SetHelpTemplate(`Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableSubCommands}}Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}Flags:
EXPERIMENT:
   -d, -device int         accelerator index the trainer is restricted to
   --ILtype string         incremental learning type (task, class)
   -dataset string         dataset identifier (e.g. cifar100, tinyimagenet200)
   -split int              number of sequential tasks
   --alpha float           coefficient of the attention loss
   --beta float            coefficient of the distillation loss
   --gamma float           coefficient of the accumulation loss
   --memory_size int       replay memory capacity
   --rt float              retention temperature coefficient
   --num_head int          attention head count
   --hidden_dim int        attention hidden dimension

RESUME:
   -resume                 continue from a saved checkpoint
   --resume_task int       1-based task index to resume from
   --resume_time string    checkpoint timestamp (YYYYMMDD_HHMM)

TRACK:
   -status string          filter by status (running, completed, failed)
   -all                    query all datasets

OUTPUT:
   -o, -output string      file to write the run record to
   -j, -json               write the run record in JSON format
   -silent                 silent mode - no banner or extra output

CONFIGURATION:
   -c, -config string      config file path (default: config/config.yaml)
   --no-clean              skip the pre-launch cache cleanup
   --dry-run               print the serialized argument list without launching

OPTIMIZATION:
   -v, -verbose            enable verbose/debug output
{{if .HasAvailableSubCommands}}
Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: config/config.yaml)")

	defaults := launcher.DefaultConfiguration()

	rootCmd.Flags().IntVarP(&device, "device", "d", defaults.Device, "accelerator index the trainer is restricted to")
	rootCmd.Flags().StringVar(&ilType, "ILtype", defaults.ILType, "incremental learning type (task, class)")
	rootCmd.Flags().StringVar(&dataset, "dataset", defaults.Dataset, "dataset identifier")
	rootCmd.Flags().IntVar(&split, "split", defaults.Split, "number of sequential tasks")
	rootCmd.Flags().Float64Var(&alpha, "alpha", defaults.Alpha, "coefficient of the attention loss")
	rootCmd.Flags().Float64Var(&beta, "beta", defaults.Beta, "coefficient of the distillation loss")
	rootCmd.Flags().Float64Var(&gamma, "gamma", defaults.Gamma, "coefficient of the accumulation loss")
	rootCmd.Flags().IntVar(&memorySize, "memory_size", defaults.MemorySize, "replay memory capacity")
	rootCmd.Flags().Float64Var(&rt, "rt", defaults.RT, "retention temperature coefficient")
	rootCmd.Flags().IntVar(&numHead, "num_head", defaults.NumHead, "attention head count")
	rootCmd.Flags().IntVar(&hiddenDim, "hidden_dim", defaults.HiddenDim, "attention hidden dimension")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "continue from a saved checkpoint")
	rootCmd.Flags().IntVar(&resumeTask, "resume_task", 1, "1-based task index to resume from")
	rootCmd.Flags().StringVar(&resumeTime, "resume_time", "", "checkpoint timestamp (YYYYMMDD_HHMM)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "file to write the run record to")
	rootCmd.Flags().BoolVarP(&jsonFormat, "json", "j", false, "write the run record in JSON format")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "silent mode - no banner or extra output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")
	rootCmd.Flags().BoolVar(&noClean, "no-clean", false, "skip the pre-launch cache cleanup")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the serialized argument list without launching")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(updateCmd)
}

func buildRunConfiguration() launcher.RunConfiguration {
	cfg := launcher.RunConfiguration{
		Device:     device,
		ILType:     ilType,
		Dataset:    dataset,
		Split:      split,
		Alpha:      alpha,
		Beta:       beta,
		Gamma:      gamma,
		MemorySize: memorySize,
		RT:         rt,
		NumHead:    numHead,
		HiddenDim:  hiddenDim,
	}

	if resume {
		cfg.Resume = &launcher.ResumeOptions{
			Task: resumeTask,
			Time: resumeTime,
		}
	}

	return cfg
}

func runExperiment(cmd *cobra.Command, args []string) {
	Verbose = verbose

	if verbose {
		setDebugLogFunctions()
	}

	runConfig := buildRunConfiguration()

	if err := runConfig.Validate(); err != nil {
		color.Red("Error: %v", err)
		cmd.Help()
		os.Exit(1)
	}

	if dryRun {
		fmt.Println(strings.Join(runConfig.Args(), " "))
		os.Exit(0)
	}

	orch, err := orchestrator.NewOrchestrator(configFile)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}

	result, err := orch.RunExperiment(orchestrator.RunOptions{
		Config:    runConfig,
		SkipClean: noClean,
	})
	if err != nil {
		color.Red("Run failed: %v", err)
		os.Exit(1)
	}

	if err := handleOutput(result); err != nil {
		color.Red("Output error: %v", err)
	}

	// pass-through, not a supervisor: the trainer's status is our status
	os.Exit(result.ExitCode)
}

func printBanner() {
	banner := color.CyanString(`
┬  ┬  ┬┌┬┐┬─┐┬ ┬┌┐┌
│  └┐┌┘ │ ├┬┘│ ││││
┴─┘ └┘  ┴ ┴└─└─┘┘└┘
`)
	info := color.HiBlackString("reproducible experiment launcher for LVT incremental learning")
	fmt.Println(banner)
	fmt.Println(info)
	fmt.Println()
}

type RunRecordOutput struct {
	Dataset  string  `json:"dataset"`
	ILType   string  `json:"iltype"`
	Split    int     `json:"split"`
	Device   int     `json:"device"`
	Alpha    float64 `json:"alpha"`
	Beta     float64 `json:"beta"`
	Gamma    float64 `json:"gamma"`
	Memory   int     `json:"memory_size"`
	RT       float64 `json:"rt"`
	NumHead  int     `json:"num_head"`
	Hidden   int     `json:"hidden_dim"`
	Args     string  `json:"args"`
	ExitCode int     `json:"exit_code"`
	Duration string  `json:"duration"`
}

func runRecord(result *orchestrator.RunResult) RunRecordOutput {
	cfg := result.Config
	return RunRecordOutput{
		Dataset:  cfg.Dataset,
		ILType:   cfg.ILType,
		Split:    cfg.Split,
		Device:   cfg.Device,
		Alpha:    cfg.Alpha,
		Beta:     cfg.Beta,
		Gamma:    cfg.Gamma,
		Memory:   cfg.MemorySize,
		RT:       cfg.RT,
		NumHead:  cfg.NumHead,
		Hidden:   cfg.HiddenDim,
		Args:     strings.Join(result.Args, " "),
		ExitCode: result.ExitCode,
		Duration: result.Duration.String(),
	}
}

func handleOutput(result *orchestrator.RunResult) error {
	if !silent {
		if result.Success {
			color.Green("\nRun completed: %s (%s split=%d) in %v",
				result.Config.Dataset, result.Config.ILType, result.Config.Split, result.Duration)
		} else {
			color.Red("\nRun failed with exit status %d after %v", result.ExitCode, result.Duration)
		}
	}

	if jsonFormat && outputFile == "" {
		jsonBytes, err := json.Marshal(runRecord(result))
		if err != nil {
			return fmt.Errorf("failed to marshal run record: %w", err)
		}
		fmt.Println(string(jsonBytes))
	}

	if outputFile != "" {
		return writeRecordFile(result, outputFile)
	}

	return nil
}

func writeRecordFile(result *orchestrator.RunResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if jsonFormat {
		jsonBytes, err := json.Marshal(runRecord(result))
		if err != nil {
			return fmt.Errorf("failed to marshal run record: %w", err)
		}
		if _, err := fmt.Fprintln(file, string(jsonBytes)); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
		return nil
	}

	if _, err := fmt.Fprintf(file, "%s\nexit status %d in %v\n",
		strings.Join(result.Args, " "), result.ExitCode, result.Duration); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}
