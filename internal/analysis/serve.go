package analysis

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/imageclassifier-go/internal/api"
	"github.com/tphakala/imageclassifier-go/internal/buildinfo"
	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/datastore"
	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/labelinfo"
	"github.com/tphakala/imageclassifier-go/internal/logger"
	"github.com/tphakala/imageclassifier-go/internal/mqtt"
	"github.com/tphakala/imageclassifier-go/internal/observability"
	"github.com/tphakala/imageclassifier-go/internal/observability/metrics"
)

const (
	mqttConnectTimeout = 10 * time.Second
	sentryFlushTimeout = 2 * time.Second
)

// Serve runs the HTTP API until ctx is cancelled. A model that fails to load
// does not stop the server: the API reports the failed state and SIGHUP
// retries the load.
func Serve(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := GetLogger()

	if !settings.WebServer.Enabled {
		return fmt.Errorf("webserver is disabled in configuration")
	}

	if settings.Telemetry.Sentry && settings.Telemetry.DSN != "" {
		if err := errors.InitSentry(settings.Telemetry.DSN, build.Version()); err != nil {
			log.Warn("error reporting disabled", logger.Error(err))
		} else {
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	var (
		m      *observability.Metrics
		cm     *metrics.ClassifierMetrics
		dsm    *metrics.DatastoreMetrics
		mqttm  *metrics.MQTTMetrics
		apiOpt []api.Option
	)
	if settings.Telemetry.Metrics {
		var err error
		if m, err = observability.NewMetrics(); err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		cm, dsm, mqttm = m.Classifier, m.Datastore, m.MQTT
		apiOpt = append(apiOpt, api.WithMetrics(m))
	}

	provider, err := NewProvider(settings, cm)
	if err != nil {
		log.Error("starting without a classifier", logger.Error(err))
	}
	defer provider.Close()

	var schedOpts []classifier.SchedulerOption
	if cm != nil {
		schedOpts = append(schedOpts, classifier.WithSchedulerRecorder(cm))
	}
	scheduler := classifier.NewScheduler(provider, settings.Classifier.Workers, settings.Classifier.QueueSize, schedOpts...)
	defer scheduler.Stop()

	if ds := datastore.New(settings, dsm); ds != nil {
		if err := ds.Open(); err != nil {
			log.Warn("history disabled, failed to open datastore", logger.Error(err))
		} else {
			defer closeLogged(ds.Close, "datastore")
			apiOpt = append(apiOpt, api.WithDatastore(ds))
		}
	}

	if settings.MQTT.Enabled {
		client, err := connectMQTT(ctx, settings, mqttm)
		if err != nil {
			log.Warn("MQTT publishing disabled", logger.Error(err))
		} else {
			defer client.Disconnect()
			apiOpt = append(apiOpt, api.WithPublisher(mqtt.NewPublisher(client, settings.MQTT.Topic)))
		}
	}

	if settings.Assets.Path != "" {
		apiOpt = append(apiOpt, api.WithLabelStore(labelinfo.NewStore(labelinfo.Config{
			Root:          conf.ExpandPath(settings.Assets.Path),
			CacheTTL:      settings.Assets.CacheTTL,
			ThumbnailSize: settings.Assets.ThumbnailSize,
		})))
	}

	e := api.NewEcho()
	api.New(e, settings, provider, scheduler, apiOpt...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Serve(gctx, e, settings.WebServer.Listen)
	})
	g.Go(func() error {
		reloadOnSignal(gctx, provider, Loader(settings, cm))
		return nil
	})

	log.Info("imageclassifier started",
		logger.String("version", build.Version()),
		logger.String("listen", settings.WebServer.Listen),
		logger.String("classifier", provider.State().String()))

	return g.Wait()
}

// connectMQTT creates a client and connects it within mqttConnectTimeout.
func connectMQTT(ctx context.Context, settings *conf.Settings, m *metrics.MQTTMetrics) (mqtt.Client, error) {
	client, err := mqtt.NewClient(settings, m)
	if err != nil {
		return nil, err
	}
	connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		client.Disconnect()
		return nil, err
	}
	return client, nil
}

// reloadOnSignal reloads the model on SIGHUP until ctx is done.
func reloadOnSignal(ctx context.Context, provider *classifier.Provider, loader func() (*classifier.Classifier, error)) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log := GetLogger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info("reloading classifier")
			if err := provider.Load(loader); err == nil {
				log.Info("classifier reloaded", logger.String("state", provider.State().String()))
			}
		}
	}
}

func closeLogged(closeFn func() error, what string) {
	if err := closeFn(); err != nil {
		GetLogger().Warn("close failed", logger.String("component", what), logger.Error(err))
	}
}
