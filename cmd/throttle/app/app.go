// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package app is the throttle command: it copies stdin to stdout one line at a time, at a
// capped rate.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/redis.v5"

	"github.com/agata-anastazja/throttler"
	"github.com/agata-anastazja/throttler/admin"
	"github.com/agata-anastazja/throttler/config"
	"github.com/agata-anastazja/throttler/config/mysqlpersister"
	"github.com/agata-anastazja/throttler/events"
	"github.com/agata-anastazja/throttler/logging"
	"github.com/agata-anastazja/throttler/metrics"
	"github.com/agata-anastazja/throttler/rate"
	"github.com/agata-anastazja/throttler/stats"
)

const (
	eventQueueBufSize  = 1024
	mysqlPollInterval  = 5 * time.Second
	serverShutdownWait = time.Second
)

type flags struct {
	rate        float64
	unit        string
	burst       int
	configFile  string
	zkServers   string
	zkPath      string
	mysqlDSN    string
	name        string
	redisAddr   string
	metricsAddr string
	adminAddr   string
	verbose     bool
}

func parse(args []string) (*flags, error) {
	f := &flags{}
	app := kingpin.New("throttle", "Copies stdin to stdout, one line at a time, at a capped rate.")
	app.Flag("rate", "Lines per unit").Default("1").Float64Var(&f.rate)
	app.Flag("unit", "Rate unit: microsecond, millisecond, second, minute, hour, day or month").Default("second").StringVar(&f.unit)
	app.Flag("burst", "Lines that may be let through at once after a quiet period").Default("1").IntVar(&f.burst)
	app.Flag("config", "YAML file of named throttlers, used instead of --rate, --unit and --burst").StringVar(&f.configFile)
	app.Flag("zookeeper", "Comma separated ZooKeeper servers holding the throttler config").StringVar(&f.zkServers)
	app.Flag("zookeeper-path", "ZooKeeper node holding the throttler config").Default("/throttler/config").StringVar(&f.zkPath)
	app.Flag("mysql", "MySQL DSN of a database holding versioned throttler configs").StringVar(&f.mysqlDSN)
	app.Flag("name", "Name of the throttler; required with --config, --zookeeper or --mysql").StringVar(&f.name)
	app.Flag("redis", "Redis address for per-stream stats").StringVar(&f.redisAddr)
	app.Flag("metrics", "Address to serve Prometheus metrics on, e.g. :9090").StringVar(&f.metricsAddr)
	app.Flag("admin", "Address to serve the admin API for the throttler config on; needs --config, --zookeeper or --mysql").StringVar(&f.adminAddr)
	app.Flag("verbose", "Log debug output").Short('v').BoolVar(&f.verbose)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *flags) persister() (config.ConfigPersister, error) {
	switch {
	case f.configFile != "":
		cfg, err := config.ReadConfigFromFile(f.configFile)
		if err != nil {
			return nil, err
		}

		reader, err := config.Marshal(cfg)
		if err != nil {
			return nil, err
		}

		p := config.NewMemoryConfigPersister()
		return p, p.PersistAndNotify(reader)
	case f.zkServers != "":
		return config.NewZkConfigPersister(f.zkPath, strings.Split(f.zkServers, ","))
	case f.mysqlDSN != "":
		c, err := mysqlpersister.NewDSNConnector(f.mysqlDSN)
		if err != nil {
			return nil, err
		}
		return mysqlpersister.New(c, mysqlPollInterval)
	default:
		return nil, nil
	}
}

// command holds what a run of the throttle command has set up, so it can be torn down.
type command struct {
	stats      stats.Listener
	collector  *metrics.Collector
	registry   *throttler.Registry
	persister  config.ConfigPersister
	producer   *events.EventProducer
	metricsSrv *metrics.Server
	adminSrv   *admin.Server
	throttler  *throttler.Throttler
}

func (c *command) close() {
	if c.adminSrv != nil {
		shutdown("admin", c.adminSrv.Shutdown)
	}

	if c.registry != nil {
		c.registry.Stop()
	}

	if c.persister != nil {
		c.persister.Close()
	}

	if c.throttler != nil {
		c.throttler.Stop()
	}

	c.producer.Close()

	if c.metricsSrv != nil {
		shutdown("metrics", c.metricsSrv.Shutdown)
	}
}

func shutdown(server string, f func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWait)
	defer cancel()
	if err := f(ctx); err != nil {
		logging.Warnf("Could not shut down %v server: %v", server, err)
	}
}

func serve(server string, start func() error) {
	go func() {
		if err := start(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("The %v server failed: %v", server, err)
		}
	}()
}

func (c *command) handleEvent(e events.Event) {
	c.stats.HandleEvent(e)
	if c.collector != nil {
		c.collector.HandleEvent(e)
	}
}

func setUp(f *flags) (*command, error) {
	c := &command{}

	if f.redisAddr != "" {
		l, err := stats.NewRedisStatsListener(&redis.Options{Addr: f.redisAddr})
		if err != nil {
			return nil, err
		}
		c.stats = l
	} else {
		c.stats = stats.NewMemoryStatsListener()
	}

	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := metrics.New(reg)
		if err != nil {
			return nil, err
		}

		c.collector = collector
		c.metricsSrv = metrics.NewServer(f.metricsAddr, "/metrics", reg)
		serve("metrics", c.metricsSrv.Start)
	}

	p, err := f.persister()
	if err != nil {
		c.close()
		return nil, err
	}

	if p == nil {
		if f.adminAddr != "" {
			c.close()
			return nil, errors.New("--admin needs a throttler config from --config, --zookeeper or --mysql")
		}

		spec := rate.Spec{Rate: f.rate, Burst: f.burst}
		if spec.Unit, err = rate.ParseUnit(f.unit); err != nil {
			c.close()
			return nil, err
		}

		name := f.name
		if name == "" {
			name = "throttle"
		}

		c.producer = events.RegisterListener(c.handleEvent, eventQueueBufSize)
		if c.throttler, err = throttler.New(spec, throttler.WithName(name), throttler.WithNotifier(c.producer)); err != nil {
			c.close()
			return nil, err
		}

		return c, nil
	}

	c.persister = p
	if f.name == "" {
		c.close()
		return nil, errors.New("--name is required to pick a throttler from the config")
	}

	c.registry = throttler.NewRegistry(p)
	c.registry.SetStatsListener(c.stats)
	if c.collector != nil {
		c.registry.SetMetrics(c.collector)
	}

	if err := c.registry.Start(); err != nil {
		c.close()
		return nil, err
	}

	if c.throttler, err = c.registry.Find(f.name); err != nil {
		c.close()
		return nil, err
	}

	if f.adminAddr != "" {
		c.adminSrv = admin.NewServer(f.adminAddr, c.registry)
		serve("admin", c.adminSrv.Start)
	}

	return c, nil
}

// Run runs the throttle command with args, which exclude the program name.
func Run(args []string, stdin io.Reader, stdout io.Writer) error {
	f, err := parse(args)
	if err != nil {
		return err
	}

	logging.SetVerbose(f.verbose)

	c, err := setUp(f)
	if err != nil {
		return err
	}
	defer c.close()

	logging.Debugf("Throttling with %v", c.throttler)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
	}()

	w := bufio.NewWriter(stdout)
	var forwarded, rejected int64
	for m := range throttler.Throttle(c.throttler, lines) {
		if m.Rejected {
			rejected++
			continue
		}

		forwarded++
		if _, err := fmt.Fprintln(w, m.Value); err != nil {
			return err
		}

		// Lines are released at the throttled rate, so don't hold them back in the buffer.
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if err := <-scanErr; err != nil {
		return errors.Wrap(err, "reading input")
	}

	logging.Infof("Forwarded %d lines; %d polls found no token", forwarded, rejected)
	return nil
}

// Main is the entry point of the throttle binary.
func Main() {
	if err := Run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logging.Fatalf("throttle: %v", err)
	}
}
