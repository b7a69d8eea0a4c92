package main

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultDownloadTimeout = 1 * time.Minute

// RIRRemoteDataSource loads one registry's delegation snapshot, keeping
// a gzip-compressed copy on disk so rebuilds within the cache window
// skip the download.
type RIRRemoteDataSource struct {
	config   *Config
	registry Registry
	url      string

	records []*AllocationRecord
	asns    []*ASNEntry
	stats   LineStats
}

func NewRIRRemoteDataSource(conf *Config, reg Registry) *RIRRemoteDataSource {
	return &RIRRemoteDataSource{
		config:   conf,
		registry: reg,
		url:      conf.Sources[reg.String()],
	}
}

func (s *RIRRemoteDataSource) Registry() Registry { return s.registry }

func (s *RIRRemoteDataSource) Load() error {
	logrus.Debugf("%s: loading delegation snapshot", s.registry)

	raw, err := s.readCache()
	if err != nil {
		logrus.Debugf("%s: cache miss: %v", s.registry, err)
		raw, err = s.download()
		if err != nil {
			return err
		}
		if err := s.writeCache(raw); err != nil {
			logrus.Warnf("%s: unable to cache snapshot: %v", s.registry, err)
		}
	}

	s.records, s.asns, s.stats = ParseStream(s.registry, bytes.NewReader(raw))
	logrus.Debugf("%s: %d records, %d asn entries, %d skipped, %d rejected",
		s.registry, len(s.records), len(s.asns), s.stats.Skipped, s.stats.Rejected)

	return nil
}

func (s *RIRRemoteDataSource) Records() []*AllocationRecord { return s.records }
func (s *RIRRemoteDataSource) ASNs() []*ASNEntry            { return s.asns }
func (s *RIRRemoteDataSource) Stats() LineStats             { return s.stats }

func (s *RIRRemoteDataSource) Cleanup() error {
	s.records = nil
	s.asns = nil

	return nil
}

func (s *RIRRemoteDataSource) cachePath() string {
	return filepath.Join(s.config.CacheDir, "delegated-"+s.registry.String()+"-latest.gz")
}

func (s *RIRRemoteDataSource) readCache() ([]byte, error) {
	if s.config.CacheDir == "" {
		return nil, errors.New("cache disabled")
	}
	path := s.cachePath()
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if age := time.Since(fi.ModTime()); age > s.config.cacheMaxAge() {
		return nil, errors.Errorf("cache older than %v", s.config.cacheMaxAge())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open cached snapshot")
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read cached snapshot")
	}
	logrus.Debugf("%s: using cached snapshot, %d bytes", s.registry, len(raw))
	return raw, nil
}

func (s *RIRRemoteDataSource) writeCache(raw []byte) error {
	if s.config.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.config.CacheDir, 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	return os.WriteFile(s.cachePath(), buf.Bytes(), 0o644)
}

func (s *RIRRemoteDataSource) download() ([]byte, error) {
	if s.url == "" {
		return nil, errors.Errorf("no source url configured for %s", s.registry)
	}

	client := &http.Client{
		Timeout: s.config.downloadTimeout(),
	}
	logrus.Infof("%s: downloading %s", s.registry, s.url)
	resp, err := client.Get(s.url)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get %s data", s.registry)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s fetching %s", resp.Status, s.url)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read response bytes")
	}

	logrus.Debugf("%s: downloaded snapshot, %d bytes", s.registry, len(content))
	return content, nil
}
