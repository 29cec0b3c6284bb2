package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags from the process arguments.
//
// Flags:
//
//	-a remote authority base URL
//	-s status endpoint address in format [host]:[port]
//	-d database DSN ("memory" for in-memory storage)
//	-c/-config json file path with configs
//	-u user id
//	-t bearer token
//	-n storage namespace
//	-l log file path
//	-log-level minimum log level
//	-hash-key payload hash key
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-sync-interval background sync period (e.g., "30s")
//	-probe-interval connectivity probe period (e.g., "10s")
func ParseFlags(args []string) (*StructuredConfig, error) {
	return parseFlags(args)
}

func parseFlags(args []string) (*StructuredConfig, error) {
	var statusAddress NetAddress
	var remoteAddress string
	var databaseDSN string
	var jsonConfigPath string
	var userID, token, namespace string
	var logPath, logLevel string
	var hashKey string
	var requestTimeout, syncInterval, probeInterval time.Duration

	fs := flag.NewFlagSet("care-keeper", flag.ContinueOnError)
	fs.StringVar(&remoteAddress, "a", "", "Remote authority base URL")
	fs.Var(&statusAddress, "s", "Status endpoint address host:port")
	fs.StringVar(&databaseDSN, "d", "", "Database DSN")
	fs.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	fs.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&userID, "u", "", "User id")
	fs.StringVar(&token, "t", "", "Bearer token")
	fs.StringVar(&namespace, "n", "", "Storage namespace")
	fs.StringVar(&logPath, "l", "", "Log file path")
	fs.StringVar(&logLevel, "log-level", "", "Minimum log level (debug, info, warn, error)")
	fs.StringVar(&hashKey, "hash-key", "", "Payload hash key")
	fs.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	fs.DurationVar(&syncInterval, "sync-interval", 0, "Background sync period (e.g., 30s)")
	fs.DurationVar(&probeInterval, "probe-interval", 0, "Connectivity probe period (e.g., 10s)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("error parsing flags: %w", err)
	}

	return &StructuredConfig{
		App: App{
			UserID:    userID,
			Token:     token,
			HashKey:   hashKey,
			Namespace: namespace,
		},
		Storage: Storage{
			DB: DB{
				DSN: databaseDSN,
			},
		},
		Adapter: Adapter{
			HTTPAddress:    remoteAddress,
			RequestTimeout: requestTimeout,
		},
		Workers: Workers{
			SyncInterval:  syncInterval,
			ProbeInterval: probeInterval,
		},
		Status:       Status{Address: statusAddress.String()},
		Log:          Log{Path: logPath, Level: logLevel},
		JSONFilePath: jsonConfigPath,
	}, nil
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
