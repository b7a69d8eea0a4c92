package main

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	MaxIPsPerRequest = 100
)

const usage = `
Usage:

curl "http://localhost:12950/country/132.99.75.15"

Also you can pass several ip addresses that you need to check:

curl "http://localhost:12950/country/132.99.75.15,99.12.44.52,3.24.12.85"

Per-country block statistics:

curl "http://localhost:12950/stats"
curl "http://localhost:12950/stats/CN"

`

type Server struct {
	config         *Config
	countryStorage *CountryStorage
	index          *Index
}

func NewServer(config *Config, countryStorage *CountryStorage, index *Index) *Server {
	return &Server{
		config:         config,
		countryStorage: countryStorage,
		index:          index,
	}
}

func (s *Server) Run() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.usage)
	r.GET("/country/:ips", s.resolveCountry)
	r.GET("/stats", s.stats)
	r.GET("/stats/:cc", s.countryStats)

	logrus.Infof("starting the HTTP server on %s", s.config.Listen)
	r.Run(s.config.Listen)
}

func (s *Server) usage(c *gin.Context) {
	c.JSON(http.StatusOK, usage)
}

func (s *Server) resolveCountry(c *gin.Context) {
	ips, err := parseIPS(c.Param("ips"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("%s", err)})
		return
	}
	out := make(map[string]string, len(ips))
	for _, ip := range ips {
		ipInt, err := ipv4toUint32(ip)
		if err != nil {
			continue
		}
		code := s.countryStorage.FindCountry(ipInt)
		if code == "" {
			continue
		}
		out[ip] = code
	}

	c.JSON(http.StatusOK, out)
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.index.Summary())
}

func (s *Server) countryStats(c *gin.Context) {
	code := strings.ToUpper(c.Param("cc"))
	entry := s.index.Lookup(code)

	registries := make([]string, 0, 1)
	for _, r := range entry.Registries() {
		registries = append(registries, r.String())
	}
	c.JSON(http.StatusOK, gin.H{
		"country":        code,
		"registries":     registries,
		"ipv4_blocks":    entry.BlockCount(FamilyIPv4),
		"ipv6_blocks":    entry.BlockCount(FamilyIPv6),
		"ipv4_addresses": entry.AddressCountV4(),
	})
}

func parseIPS(ips string) ([]string, error) {
	if ips == "" {
		return nil, errors.New("empty ip string passed")
	}

	out := make([]string, 0)
	parts := strings.Split(ips, ",")
	if len(parts) > MaxIPsPerRequest {
		return nil, errors.New("limit of ips in one request reached")
	}
	for _, ip := range parts {
		ip = strings.TrimSpace(ip)
		ipS := net.ParseIP(ip)
		if ipS.To4() == nil {
			return nil, errors.New("not correct ipv4 passed")
		}
		out = append(out, ip)
	}

	if len(out) == 0 {
		return nil, errors.New("has no ip addresses to check")
	}

	return out, nil
}
