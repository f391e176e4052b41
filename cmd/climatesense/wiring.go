package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafabd1/climatesense/internal/agent"
	"github.com/rafabd1/climatesense/internal/control"
	"github.com/rafabd1/climatesense/internal/llm"
	"github.com/rafabd1/climatesense/internal/memory"
	"github.com/rafabd1/climatesense/internal/metrics"
	"github.com/rafabd1/climatesense/internal/notify"
	"github.com/rafabd1/climatesense/internal/supervisor"
	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/internal/weather"
	"github.com/rafabd1/climatesense/pkg/logger"
	"github.com/rafabd1/climatesense/pkg/search"
	"github.com/rafabd1/climatesense/pkg/search/providers"
	"github.com/rafabd1/climatesense/pkg/utils"
)

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// buildPipeline wires the analysis pipeline. The caller closes the returned
// LLM client.
func (a *app) buildPipeline(ctx context.Context, m *metrics.Metrics) (*agent.Pipeline, *llm.Gemini, error) {
	cfg := a.cfg
	gen, err := llm.NewGemini(ctx, llm.Config{
		APIKey:        cfg.LLM.APIKey,
		ModelName:     cfg.LLM.ModelName,
		Timeout:       cfg.LLM.Timeout,
		RetryAttempts: cfg.LLM.RetryAttempts,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create LLM client")
	}

	if cfg.Weather.APIKey == "" {
		a.log.Warn("Weather API key is not set; weather requests will be rejected")
	}
	var news search.Searcher
	if cfg.News.APIKey != "" {
		news = providers.NewNewsAPIProvider(cfg.News.APIKey, cfg.News.BaseURL, cfg.News.Timeout)
	} else {
		a.log.Warn("News API key is not set; news analysis is disabled")
	}

	store := memory.NewStore(cfg.Agent.MemoryFile)
	p := &agent.Pipeline{
		Weather: weather.NewClient(weather.Config{
			APIKey:  cfg.Weather.APIKey,
			BaseURL: cfg.Weather.BaseURL,
			Units:   cfg.Weather.Units,
			Timeout: cfg.Weather.Timeout,
		}),
		News: news,
		NewsOptions: agent.NewsOptions{
			Language:     cfg.News.Language,
			PageSize:     cfg.News.PageSize,
			LookbackDays: cfg.News.LookbackDays,
		},
		Trend:       &agent.TrendForecaster{LLM: gen, History: store},
		Recommender: &agent.Recommender{LLM: gen},
		Analyzer:    &agent.NewsAnalyzer{LLM: gen},
		Metrics:     m,
	}
	return p, gen, nil
}

func (a *app) buildAgent(ctx context.Context, m *metrics.Metrics, out io.Writer) (*agent.Agent, func(), error) {
	cfg := a.cfg
	pipeline, gen, err := a.buildPipeline(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := gen.Close(); err != nil {
			a.log.Warn("Failed to close LLM client", "error", err)
		}
	}

	levels := make([]types.RiskLevel, 0, len(cfg.Agent.AlertLevels))
	for _, l := range cfg.Agent.AlertLevels {
		levels = append(levels, types.ParseRiskLevel(l))
	}
	if !cfg.Email.Configured() {
		a.log.Warn("Email settings are incomplete; alerts will only be saved as PDF reports")
	}

	ag, err := agent.New(agent.Deps{
		Pipeline: pipeline,
		Control:  control.NewFile(cfg.Agent.ControlFile),
		Memory:   memory.NewStore(cfg.Agent.MemoryFile),
		Composer: &agent.EmailComposer{LLM: gen},
		Mailer: notify.NewMailer(notify.Config{
			Host:       cfg.Email.Host,
			Port:       cfg.Email.Port,
			User:       cfg.Email.User,
			Password:   cfg.Email.Password,
			Recipients: cfg.Email.Recipients,
			Timeout:    30 * time.Second,
		}),
		Out:     out,
		Metrics: m,
	}, agent.Options{
		DefaultLocation: cfg.Agent.DefaultLocation,
		Schedule:        cfg.Agent.Schedule,
		AlertLevels:     levels,
		ReportDir:       cfg.Agent.ReportDir,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return ag, closeFn, nil
}

// supervisorConfig resolves the worker and dashboard argv, defaulting both to
// this binary.
func (a *app) supervisorConfig() (supervisor.Config, error) {
	cfg := a.cfg.Supervisor
	stop := utils.MapSignal(cfg.StopSignal)
	if stop == nil {
		return supervisor.Config{}, errors.Errorf("unknown stop signal %q", cfg.StopSignal)
	}

	self, err := os.Executable()
	if err != nil {
		return supervisor.Config{}, errors.Wrap(err, "failed to locate own executable")
	}
	worker := cfg.Worker
	if len(worker) == 0 {
		worker = append([]string{self, "agent"}, a.childArgs...)
	}
	sc := supervisor.Config{
		CredentialEnv: cfg.CredentialEnv,
		Worker:        supervisor.Process{Name: "worker", Command: worker},
		GracePeriod:   cfg.GracePeriod,
		StopSignal:    stop,
	}
	if cfg.DashboardEnabled {
		dash := cfg.Dashboard
		if len(dash) == 0 {
			dash = append([]string{self, "dashboard"}, a.childArgs...)
		}
		sc.Background = append(sc.Background, supervisor.Process{Name: "dashboard", Command: dash})
	}
	return sc, nil
}

// serveMetrics exposes reg on addr until ctx ends.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Serving agent metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "metrics listener failed")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
