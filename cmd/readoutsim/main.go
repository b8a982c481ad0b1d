package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "3"

	// ConfigFileName is what it sounds like
	ConfigFileName = "readoutsim.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `readoutsim converts electron images into raw multi-segment detector files,
simulating the camera readout electronics: dark current, segmentation,
crosstalk, charge transfer inefficiency, bias and read noise.

Usage:
	readoutsim <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `readoutsim is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Without a configuration the defaults are used, which read every
eimage_*.fits file in the working directory and write raw files next to
them.

Camera geometry is described by a YAML file (GeometryFile) listing the
detectors and their amplifier segments; the camera family name selects
the header keyword convention and must be one of:
- LsstCam
- LsstComCam
- LsstCamImSim

Readout parameters and their defaults:
- ExpTime      30    exposure time (s)
- ReadoutTime  2     sensor readout time (s)
- DarkCurrent  0.02  dark current (e-/s)
- BiasLevel    0     bias override (ADU); 0 uses the per-amp level
- SCTI         1e-6  serial charge transfer inefficiency
- PCTI         1e-6  parallel charge transfer inefficiency
- FullWell     1e5   saturation level (e-)

Set MetricsAddr (e.g. ":9090") to serve Prometheus metrics during a run.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("readoutsim version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	if err := RunBatch(c, logger); err != nil {
		log.Fatal(err)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
