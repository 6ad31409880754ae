// viewsd computes aggregated business-view states from file inputs: a TOML
// daemon config, a YAML tree-definitions file and a YAML status snapshot
// (optionally enriched with local-check agent output). It recomputes on
// every input change, exports prometheus metrics and publishes branch state
// transitions to NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/statetreelib/go-statetree/stree"
)

func main() {
	configPath := flag.String("config", "viewsd.toml", "path to the daemon TOML config")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	log := newLogger(cfg)

	pub, err := newPublisher(cfg.NATS, log)
	if err != nil {
		log.WithError(err).Fatal("nats setup failed")
	}
	defer pub.close()

	d := &daemon{cfg: cfg, log: log, pub: pub}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.run(ctx); err != nil {
		log.WithError(err).Fatal("viewsd failed")
	}
}

func newLogger(cfg Config) *logrus.Entry {
	log := logrus.New()
	log.Out = os.Stdout
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log.WithField("component", "viewsd")
}

type daemon struct {
	cfg Config
	log *logrus.Entry
	pub *publisher
}

func (d *daemon) run(ctx context.Context) error {
	server := &http.Server{Addr: d.cfg.ListenAddr, Handler: metricsHandler()}
	go func() {
		d.log.WithField("addr", d.cfg.ListenAddr).Info("serving metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.WithError(err).Error("metrics server failed")
		}
	}()
	defer server.Close()

	if err := d.evaluate(time.Now()); err != nil {
		return err
	}
	return d.watch(ctx)
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// watch recomputes on every write to the definitions or status file. A
// failing reload keeps the previous results; the next successful write
// recovers. Editors often replace files via rename, so the paths are
// re-added after each event.
func (d *daemon) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	paths := []string{d.cfg.DefinitionsFile, d.cfg.StatusFile}
	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	d.log.WithField("paths", paths).Info("watching inputs")

	for {
		select {
		case <-ctx.Done():
			d.log.Info("shutting down")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := d.evaluate(time.Now()); err != nil {
				reloadFailures.Inc()
				d.log.WithError(err).Error("reload failed, keeping previous results")
			}
			for _, path := range paths {
				_ = watcher.Add(path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.WithError(err).Error("watcher error")
		}
	}
}

// evaluate runs one full pass: load inputs, compile trees, compute every
// aggregation, update metrics and publish transitions.
func (d *daemon) evaluate(now time.Time) error {
	rawDefs, err := os.ReadFile(d.cfg.DefinitionsFile)
	if err != nil {
		return fmt.Errorf("read definitions: %w", err)
	}
	doc, err := stree.ParseDefinitions(rawDefs)
	if err != nil {
		return err
	}
	in, err := loadInputs(d.cfg.StatusFile, now)
	if err != nil {
		return err
	}
	aggregations, err := stree.CompileDefinitions(doc, in.topology)
	if err != nil {
		return err
	}

	for _, aggregation := range aggregations {
		started := time.Now()
		var results []*stree.ResultBundle
		if d.cfg.Parallel {
			results = aggregation.ComputeBranchesParallel(aggregation.Branches, in.snapshot)
		} else {
			results = aggregation.ComputeBranches(aggregation.Branches, in.snapshot)
		}
		computePasses.WithLabelValues(aggregation.ID).Inc()
		computeDuration.WithLabelValues(aggregation.ID).Observe(time.Since(started).Seconds())

		for _, bundle := range results {
			branch := bundle.Instance.(*stree.Rule)
			effective := bundle.EffectiveResult()
			branchState.WithLabelValues(aggregation.ID, branch.Properties.Title).
				Set(float64(effective.State))
			d.pub.publish(aggregation.ID, branch.Properties.Title, effective)

			d.log.WithFields(logrus.Fields{
				"aggregation": aggregation.ID,
				"branch":      branch.Properties.Title,
				"state":       stree.ServiceStateName(effective.State),
				"assumed":     bundle.AssumedResult != nil,
				"output":      effective.Output,
			}).Info("branch computed")
		}
	}
	return nil
}
