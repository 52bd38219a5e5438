package launcher

import (
	"fmt"
	"regexp"
	"strconv"
)

var resumeTimeRegex = regexp.MustCompile(`^[0-9]{8}_[0-9]{4}$`)

// ResumeOptions selects a saved checkpoint to continue from. Time uses the
// trainer's YYYYMMDD_HHMM checkpoint naming, Task is the 1-based task index.
type ResumeOptions struct {
	Task int
	Time string
}

// RunConfiguration holds one full training invocation. It is built once before
// launch and never mutated afterwards.
type RunConfiguration struct {
	Device     int
	ILType     string
	Dataset    string
	Split      int
	Alpha      float64
	Beta       float64
	Gamma      float64
	MemorySize int
	RT         float64
	NumHead    int
	HiddenDim  int
	Resume     *ResumeOptions
}

// DefaultConfiguration returns the standard CIFAR-100 task-incremental setup.
func DefaultConfiguration() RunConfiguration {
	return RunConfiguration{
		Device:     0,
		ILType:     "task",
		Dataset:    "cifar100",
		Split:      10,
		Alpha:      2.5,
		Beta:       2.5,
		Gamma:      2.5,
		MemorySize: 500,
		RT:         1,
		NumHead:    2,
		HiddenDim:  512,
	}
}

func (c RunConfiguration) Validate() error {
	if c.Device < 0 {
		return fmt.Errorf("device index must not be negative, got %d", c.Device)
	}

	switch c.ILType {
	case "task", "class":
	default:
		return fmt.Errorf("unknown ILtype %q (expected 'task' or 'class')", c.ILType)
	}

	if c.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}

	if c.Split <= 0 {
		return fmt.Errorf("split must be greater than 0, got %d", c.Split)
	}

	if c.MemorySize <= 0 {
		return fmt.Errorf("memory_size must be greater than 0, got %d", c.MemorySize)
	}

	if c.NumHead <= 0 {
		return fmt.Errorf("num_head must be greater than 0, got %d", c.NumHead)
	}

	if c.HiddenDim <= 0 {
		return fmt.Errorf("hidden_dim must be greater than 0, got %d", c.HiddenDim)
	}

	if c.Resume != nil {
		if c.Resume.Task < 1 {
			return fmt.Errorf("resume_task must be at least 1, got %d", c.Resume.Task)
		}
		if !resumeTimeRegex.MatchString(c.Resume.Time) {
			return fmt.Errorf("resume_time %q does not match YYYYMMDD_HHMM", c.Resume.Time)
		}
	}

	return nil
}

// Args serializes the configuration into the trainer's flag list. The order is
// fixed so that identical configurations always produce identical argument
// slices. The device index is not part of the list; it travels through the
// child environment instead.
func (c RunConfiguration) Args() []string {
	args := []string{
		"--ILtype", c.ILType,
		"--dataset", c.Dataset,
		"--split", strconv.Itoa(c.Split),
		"--alpha", formatFloat(c.Alpha),
		"--beta", formatFloat(c.Beta),
		"--gamma", formatFloat(c.Gamma),
		"--memory_size", strconv.Itoa(c.MemorySize),
		"--rt", formatFloat(c.RT),
		"--num_head", strconv.Itoa(c.NumHead),
		"--hidden_dim", strconv.Itoa(c.HiddenDim),
	}

	if c.Resume != nil {
		args = append(args,
			"--resume", "True",
			"--resume_task", strconv.Itoa(c.Resume.Task),
			"--resume_time", c.Resume.Time,
		)
	}

	return args
}

// DeviceEnv returns the accelerator restriction for the child environment.
func (c RunConfiguration) DeviceEnv() string {
	return fmt.Sprintf("CUDA_VISIBLE_DEVICES=%d", c.Device)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
