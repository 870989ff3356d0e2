package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"soniq/src/handler/api"
	"soniq/src/library/remote"
	"soniq/src/player"
	"soniq/src/player/mpd"
	"soniq/src/util"
)

const confFile = "config.yaml"

const defaultVolume = 0.75

var (
	build       = "%BUILD%"
	version     = "%VERSION%"
	versionDate = "%VERSION_DATE%"
)

type config struct {
	Address string `yaml:"bind"`

	CatalogURL string `yaml:"catalog_url"`

	Volume *float32 `yaml:"volume"`

	MPD struct {
		Network  string  `yaml:"network"`
		Address  string  `yaml:"address"`
		Password *string `yaml:"password"`
	} `yaml:"mpd"`
}

func (conf *config) Validate() (errs []error) {
	if conf.Address == "" {
		errs = append(errs, fmt.Errorf("config: `bind` is required"))
	}
	if conf.CatalogURL == "" {
		errs = append(errs, fmt.Errorf("config: `catalog_url` is required"))
	}
	if conf.MPD.Address == "" {
		errs = append(errs, fmt.Errorf("config: `mpd.address` is required"))
	}
	if conf.Volume != nil && (*conf.Volume < 0 || *conf.Volume > 1) {
		errs = append(errs, fmt.Errorf("config: `volume` must be in [0, 1]"))
	}
	return
}

func LoadConfig(filename string) (*config, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	var conf config
	if err := d.Decode(&conf); err != nil {
		return nil, err
	}

	if conf.MPD.Network == "" {
		conf.MPD.Network = "tcp"
	}
	return &conf, nil
}

func main() {
	defaultLogLevel := "warn"
	if build == "debug" {
		defaultLogLevel = "debug"
	}

	configFile := flag.String("conf", confFile, "Path to the configuration file")
	printVersion := flag.Bool("version", false, "Print version information and exit")
	logLevel := flag.String("log", defaultLogLevel, "Sets the log level. [debug, info, warn, error]")
	flag.Parse()

	if ll, err := log.ParseLevel(*logLevel); err != nil {
		log.Fatalf("Could not parse log level: %v", err)
	} else {
		log.SetLevel(ll)
	}
	log.SetReportCaller(true)

	if *printVersion {
		fmt.Printf("Version: %v (%v)\n", version, versionDate)
		fmt.Printf("Build: %v\n", build)
		return
	}

	log.Infof("Version: %v (%v)\n", version, build)
	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		log.Fatalf("Could not load config: %v", errs)
	}

	dev, err := mpd.Connect(config.MPD.Network, config.MPD.Address, config.MPD.Password)
	if err != nil {
		log.Fatalf("Could not connect to the playback device: %v", err)
	}
	defer dev.Close()
	log.Infof("Using MPD at %s for playback", config.MPD.Address)

	volume := float32(defaultVolume)
	if config.Volume != nil {
		volume = *config.Volume
	}
	session := player.NewSession(dev, volume)
	defer session.Close()

	catalog := remote.NewClient(config.CatalogURL)
	log.Infof("Using catalog at %s", config.CatalogURL)

	r := chi.NewRouter()
	r.Use(util.LogHandler)
	api.InitRouter(r, session, catalog, catalog)
	if build == "debug" {
		r.Get("/debug/pprof/*", pprof.Index)
	}

	log.Infof("Now accepting HTTP connections on %v", config.Address)
	server := &http.Server{
		Addr:           config.Address,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Fatalf("Error running webserver: %v", server.ListenAndServe())
}
