package main

// This is the command to start up a filegate server.
//
// All configuration is done either on the command line or with a
// configuration file in TOML format. Example:
//
//	PortNumber = "14000"
//	BaseURL = "https://files.example.com"
//	DataDir = "/var/filegate"
//	Tokenfile = "/etc/filegate/tokens"
//	RedirectEnabled = true

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	raven "github.com/getsentry/raven-go"

	"github.com/filegate/filegate/redirect"
	"github.com/filegate/filegate/server"
)

type config struct {
	PortNumber      string
	PProfPort       string
	BaseURL         string
	DeepLinkBase    string
	DataDir         string
	Mysql           string
	CodeLength      int
	MaxDownloads    int
	Tokenfile       string
	RedirectEnabled bool
	RedirectBase    string
}

func main() {
	var (
		configFile = flag.String("config-file", "", "location of configuration file")
		showVer    = flag.Bool("version", false, "display version and exit")
	)
	flag.Parse()

	if *showVer {
		log.Printf("filegate version %s", server.Version)
		return
	}

	var c config
	if *configFile != "" {
		if _, err := toml.DecodeFile(*configFile, &c); err != nil {
			log.Println("Error reading config file:", err)
			os.Exit(1)
		}
	}

	// the sentry DSN comes from the environment variable SENTRY_DSN
	raven.SetRelease(server.Version)

	var validator server.TokenDecoder
	if c.Tokenfile != "" {
		var err error
		validator, err = server.NewListDecoderFile(c.Tokenfile)
		if err != nil {
			log.Println("Error opening token file:", err)
			os.Exit(1)
		}
	}

	gate := &redirect.Gate{Enabled: c.RedirectEnabled}
	if c.RedirectBase != "" {
		gate.BaseURLs = []string{c.RedirectBase}
	}

	s := &server.RESTServer{
		PortNumber:   c.PortNumber,
		PProfPort:    c.PProfPort,
		BaseURL:      c.BaseURL,
		DeepLinkBase: c.DeepLinkBase,
		DataDir:      c.DataDir,
		MySQL:        c.Mysql,
		CodeLength:   c.CodeLength,
		MaxDownloads: c.MaxDownloads,
		Redirect:     gate,
		Validator:    validator,
	}

	// install signal handlers
	sig := make(chan os.Signal, 5)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s2 := <-sig
		log.Println("---- received signal", s2)
		s.Stop()
	}()

	err := s.Run()
	if err != nil {
		raven.CaptureErrorAndWait(err, nil)
		log.Println(err)
	}
	log.Println("Exiting")
}
