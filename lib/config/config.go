/*package config reads the settings of a subsampling run. Settings can come
from a gcfg (INI-style) file and from the command line, with the command line
taking precedence. An example config file:

	[subsample]
	fraction = 0.1
	input = snapdir_010/snapshot_010
	output = subsampled/snapshot_010
	seed = 42
	generator = mt19937
	strategy = mmap
	byte-order = little
	manifest = subsampled/snapshot_010.manifest
	metrics-file = /var/lib/node_exporter/subsample.prom

	[log]
	level = info
	format = console
*/
package config

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/gadget-subsample/lib/copier"
	g_error "github.com/phil-mansfield/gadget-subsample/lib/error"
	"github.com/phil-mansfield/gadget-subsample/lib/sample"
	"github.com/phil-mansfield/gadget-subsample/lib/snapio"
)

const (
	DefaultSeed      = 42
	DefaultGenerator = sample.MT19937
	DefaultStrategy  = copier.Mmap
	DefaultByteOrder = "little"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// RawArgs stores the unprocessed values which the user assigned to each
// config variable. Empty strings are unset.
type RawArgs struct {
	Subsample struct {
		Fraction    string
		Input       string
		Output      string
		Seed        string
		Generator   string
		Strategy    string
		ByteOrder   string `gcfg:"byte-order"`
		Manifest    string
		MetricsFile string `gcfg:"metrics-file"`
	}
	Log struct {
		Level  string
		Format string
	}
}

// Args stores configuration information. It is a post-processed version of
// RawArgs.
type Args struct {
	Fraction      float64
	Input, Output string
	Seed          uint64
	Generator     string
	Strategy      string
	Order         binary.ByteOrder
	Manifest      string
	MetricsFile   string
	LogLevel      string
	LogFormat     string
}

// ParseConfigFile parses arguments from a config file.
func ParseConfigFile(fileName string) (*RawArgs, error) {
	args := &RawArgs{}
	if err := gcfg.ReadFileInto(args, fileName); err != nil {
		return nil, fmt.Errorf("%w: could not parse the config file %s: %s",
			g_error.ErrInvalidConfig, fileName, err.Error())
	}
	return args, nil
}

// ParseConfigString parses arguments from the contents of a config file.
func ParseConfigString(text string) (*RawArgs, error) {
	args := &RawArgs{}
	if err := gcfg.ReadStringInto(args, text); err != nil {
		return nil, fmt.Errorf("%w: could not parse config: %s",
			g_error.ErrInvalidConfig, err.Error())
	}
	return args, nil
}

// Overwrite arguments in arg1 which have been set in arg2.
func (arg1 *RawArgs) Overwrite(arg2 *RawArgs) {
	s1, s2 := &arg1.Subsample, &arg2.Subsample
	pairs := [][2]*string{
		{&s1.Fraction, &s2.Fraction},
		{&s1.Input, &s2.Input},
		{&s1.Output, &s2.Output},
		{&s1.Seed, &s2.Seed},
		{&s1.Generator, &s2.Generator},
		{&s1.Strategy, &s2.Strategy},
		{&s1.ByteOrder, &s2.ByteOrder},
		{&s1.Manifest, &s2.Manifest},
		{&s1.MetricsFile, &s2.MetricsFile},
		{&arg1.Log.Level, &arg2.Log.Level},
		{&arg1.Log.Format, &arg2.Log.Format},
	}
	for _, p := range pairs {
		if *p[1] != "" {
			*p[0] = *p[1]
		}
	}
}

// Process converts the raw user input to a format which is more useful for
// internal functions. Very simple validation will be done here, but nothing
// which requires interacting with external files.
func (raw *RawArgs) Process() (*Args, error) {
	s := &raw.Subsample
	args := &Args{
		Input:       s.Input,
		Output:      s.Output,
		Generator:   orDefault(strings.ToLower(s.Generator), DefaultGenerator),
		Strategy:    orDefault(strings.ToLower(s.Strategy), DefaultStrategy),
		Manifest:    s.Manifest,
		MetricsFile: s.MetricsFile,
		LogLevel:    orDefault(strings.ToLower(raw.Log.Level), DefaultLogLevel),
		LogFormat:   orDefault(strings.ToLower(raw.Log.Format), DefaultLogFormat),
	}

	if s.Fraction == "" {
		return nil, invalid("fraction", s.Fraction, "it must be set")
	}
	var err error
	args.Fraction, err = strconv.ParseFloat(s.Fraction, 64)
	if err != nil {
		return nil, invalid("fraction", s.Fraction, "it isn't a number")
	} else if !(args.Fraction > 0 && args.Fraction <= 1) {
		return nil, invalid("fraction", s.Fraction, "it must be in (0, 1]")
	}

	if args.Input == "" {
		return nil, invalid("input", s.Input, "it must be set")
	} else if args.Output == "" {
		return nil, invalid("output", s.Output, "it must be set")
	} else if args.Input == args.Output {
		return nil, invalid("output", s.Output,
			"it must differ from the input")
	}

	args.Seed = DefaultSeed
	if s.Seed != "" {
		args.Seed, err = strconv.ParseUint(s.Seed, 0, 64)
		if err != nil {
			return nil, invalid("seed", s.Seed,
				"it isn't a non-negative integer")
		}
	}

	if !contains(sample.Generators, args.Generator) {
		return nil, invalid("generator", s.Generator,
			fmt.Sprintf("valid generators are %v", sample.Generators))
	}
	if !contains(copier.Strategies, args.Strategy) {
		return nil, invalid("strategy", s.Strategy,
			fmt.Sprintf("valid strategies are %v", copier.Strategies))
	}

	args.Order, err = ParseByteOrder(orDefault(s.ByteOrder, DefaultByteOrder))
	if err != nil {
		return nil, err
	}

	if !contains([]string{"debug", "info", "warn", "error"}, args.LogLevel) {
		return nil, invalid("level", raw.Log.Level,
			"valid levels are debug, info, warn, and error")
	}
	if !contains([]string{"console", "json"}, args.LogFormat) {
		return nil, invalid("format", raw.Log.Format,
			"valid formats are console and json")
	}

	if args.Manifest != "" && (args.Manifest == args.Input ||
		args.Manifest == args.Output) {
		return nil, invalid("manifest", s.Manifest,
			"it must differ from the input and output")
	}

	return args, nil
}

// ParseByteOrder converts "little", "big", or "native" to a byte order.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(name) {
	case "little":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	case "native":
		return snapio.SystemByteOrder(), nil
	}
	return nil, invalid("byte-order", name,
		"valid byte orders are little, big, and native")
}

func invalid(name, value, reason string) error {
	return fmt.Errorf("%w: '%s' is not a valid value for %s, %s.",
		g_error.ErrInvalidConfig, value, name, reason)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func contains(x []string, target string) bool {
	for i := range x {
		if x[i] == target {
			return true
		}
	}
	return false
}
