package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logrus.SetLevel(logrus.InfoLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	configPath := "./config.yaml"
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}
	conf, err := ParseConfig(configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(logrus.Level(conf.LogLevel))

	switch cmd {
	case "build":
		sources := loadSources(conf)
		idx := buildIndex(sources)
		if err := ExportIndex(idx, conf.OutputDir); err != nil {
			logrus.Fatal(err)
		}
		lists := ResolveCuratedLists(idx, conf.CuratedLists)
		if err := ExportCuratedLists(lists, conf.OutputDir); err != nil {
			logrus.Fatal(err)
		}
		if err := ExportASN(NewASNSet(sources), conf.OutputDir); err != nil {
			logrus.Fatal(err)
		}
		cleanupSources(sources)
	case "asn":
		sources := loadSources(conf)
		if err := ExportASN(NewASNSet(sources), conf.OutputDir); err != nil {
			logrus.Fatal(err)
		}
		cleanupSources(sources)
	case "curated":
		sources := loadSources(conf)
		idx := buildIndex(sources)
		cleanupSources(sources)
		lists := ResolveCuratedLists(idx, conf.CuratedLists)
		if err := ExportCuratedLists(lists, conf.OutputDir); err != nil {
			logrus.Fatal(err)
		}
	case "serve":
		sources := loadSources(conf)
		idx := buildIndex(sources)
		cleanupSources(sources)
		storage := NewCountryStorage(idx)
		//todo: add graceful shutdown
		server := NewServer(conf, storage, idx)
		server.Run()
	case "-h", "--help", "help":
		printUsage()
	default:
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println(`Usage: ip-country <command> [config.yaml]
Commands:
  build     fetch all registry snapshots, export country lists, curated lists and asn data
  asn       fetch registry snapshots and export asn data only
  curated   rebuild and export only the curated country-group lists
  serve     build the index and serve ip -> country lookups over HTTP
  help      show this help message`)
}

// loadSources fetches and parses the five registry snapshots in
// parallel. Each source owns its data until the merge, so the only
// shared work here is the errgroup itself.
func loadSources(conf *Config) []RegistryDataSource {
	sources := BuildRegistryDataSources(conf)

	var g errgroup.Group
	for _, src := range sources {
		src := src
		g.Go(src.Load)
	}
	if err := g.Wait(); err != nil {
		logrus.Fatal(err)
	}

	var total LineStats
	for _, src := range sources {
		st := src.Stats()
		total.add(st)
		logrus.Infof("%s: %d parsed, %d skipped, %d rejected", src.Registry(), st.Parsed, st.Skipped, st.Rejected)
	}
	logrus.Infof("all sources: %d parsed, %d skipped, %d rejected", total.Parsed, total.Skipped, total.Rejected)
	return sources
}

func buildIndex(sources []RegistryDataSource) *Index {
	// one accumulator per source, normalized in parallel; nothing is
	// shared until the merge inside BuildIndex
	accs := make([]*Accumulator, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			acc := NewAccumulator()
			for _, rec := range src.Records() {
				if err := acc.Add(rec); err != nil {
					logrus.Warnf("%s: %v", src.Registry(), err)
				}
			}
			if n := acc.Rejected(); n > 0 {
				logrus.Infof("%s: %d records rejected during normalization", src.Registry(), n)
			}
			accs[i] = acc
			return nil
		})
	}
	_ = g.Wait()

	idx, err := BuildIndex(accs...)
	if err != nil {
		logrus.Fatal(err)
	}

	s := idx.Summary()
	logrus.Infof("index built: %d countries, %d ipv4 blocks, %d ipv6 blocks",
		s.Countries, s.IPv4Blocks, s.IPv6Blocks)
	return idx
}

func cleanupSources(sources []RegistryDataSource) {
	for _, src := range sources {
		if err := src.Cleanup(); err != nil {
			logrus.Warnf("%s: cleanup: %v", src.Registry(), err)
		}
	}
}
