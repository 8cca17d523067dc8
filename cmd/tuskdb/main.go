package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"tuskdb/pkg/config"
	"tuskdb/pkg/database"
)

var log = logrus.New()

// Listens for SIGINT or SIGTERM and closes the database.
func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info("shutting down")
		if err := db.Close(); err != nil {
			log.WithError(err).Error("close failed")
			os.Exit(1)
		}
		os.Exit(0)
	}()
}

// loadConfig layers an optional ini file under the flag values. Flags that
// were explicitly set win.
func loadConfig(path string, dataDir *string, poolSize *int) {
	if path == "" {
		return
	}
	cfg, err := ini.Load(path)
	if err != nil {
		log.WithError(err).Fatalf("could not read config %s", path)
	}
	section := cfg.Section("")
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["data"] && section.HasKey("data_dir") {
		*dataDir = section.Key("data_dir").String()
	}
	if !set["pool"] && section.HasKey("pool_size") {
		*poolSize = section.Key("pool_size").MustInt(config.DefaultPoolSize)
	}
}

// Start the database and run the REPL on stdin.
func main() {
	var dataFlag = flag.String("data", "data", "data directory")
	var poolFlag = flag.Int("pool", config.DefaultPoolSize, "buffer pool size in frames")
	var configFlag = flag.String("config", "", "optional ini config file")
	flag.Parse()
	loadConfig(*configFlag, dataFlag, poolFlag)

	db, err := database.OpenWithPoolSize(*dataFlag, *poolFlag)
	if err != nil {
		log.WithError(err).Fatal("could not open database")
	}
	defer db.Close()
	setupCloseHandler(db)
	log.WithFields(logrus.Fields{
		"data": *dataFlag,
		"pool": *poolFlag,
	}).Info("database opened")

	r := database.DatabaseRepl(db)
	r.Run(uuid.New(), config.Prompt, os.Stdin, os.Stdout)
}
