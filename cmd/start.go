package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grimm.is/netguard/internal/auth"
	"grimm.is/netguard/internal/config"
	"grimm.is/netguard/internal/firewall"
	"grimm.is/netguard/internal/identity"
	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/monitor"
	"grimm.is/netguard/internal/portal"
	"grimm.is/netguard/internal/services"
	dnssvc "grimm.is/netguard/internal/services/dns"
	"grimm.is/netguard/internal/session"
)

// shutdownTimeout bounds graceful listener shutdown.
const shutdownTimeout = 10 * time.Second

// RunStart runs the gateway in the foreground until SIGINT or SIGTERM.
func RunStart(configFile string) error {
	configFile = configPath(configFile)
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Gateway.Backend != config.BackendMemory {
		if err := requireRoot("start"); err != nil {
			return err
		}
	}

	logger := newLogger(cfg)
	gw, err := newGateway(cfg, logger)
	if err != nil {
		return err
	}

	d, err := newDaemon(cfg, gw, nil, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.start(ctx); err != nil {
		d.shutdown()
		return err
	}

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for sig := range sigs {
		switch sig {
		case syscall.SIGHUP:
			logger.Info("reloading configuration", "file", configFile)
			next, err := config.LoadFile(configFile)
			if err != nil {
				logger.Error("reload failed, keeping current configuration", "error", err)
				continue
			}
			d.reload(next)
		case syscall.SIGUSR1:
			logger.Info("manual sweep requested")
			d.monitor.Trigger()
		default:
			logger.Info("shutting down", "signal", sig.String())
			d.shutdown()
			return nil
		}
	}
	return nil
}

// daemon owns the running components in start order.
type daemon struct {
	cfg      *config.Config
	logger   *logging.Logger
	gateway  firewall.Gateway
	resolver identity.Resolver
	users    *auth.Store
	ctl      *session.Controller
	monitor  *monitor.Monitor
	dns      *dnssvc.Service
	portal   *portal.Server
	metrics  *portal.MetricsServer

	monCtx context.Context
}

// newDaemon wires the components. A nil resolver uses the kernel tables.
func newDaemon(cfg *config.Config, gw firewall.Gateway, resolver identity.Resolver, logger *logging.Logger) (*daemon, error) {
	if resolver == nil {
		resolver = identity.NewFromConfig(cfg.Identity, cfg.Gateway.LANInterface)
	}

	users, err := auth.NewStore(cfg.UsersPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}
	if !users.HasUsers() {
		logger.Warn("no portal users configured; add one with 'user add'", "file", cfg.UsersPath())
	}

	ctl := session.NewController(gw, resolver,
		session.WithLogger(logger.WithComponent("session")),
		session.WithTimeout(cfg.Session.TimeoutDuration()),
	)

	d := &daemon{
		cfg:      cfg,
		logger:   logger,
		gateway:  gw,
		resolver: resolver,
		users:    users,
		ctl:      ctl,
	}
	d.monitor = d.newMonitor(cfg)

	if cfg.DNS.IsEnabled() {
		d.dns = dnssvc.NewService(cfg, logger.WithComponent("dns"))
	}
	d.portal, err = portal.NewServer(cfg, ctl, users, logger.WithComponent("portal"))
	if err != nil {
		return nil, err
	}
	if cfg.Portal.MetricsListen != "" {
		d.metrics = portal.NewMetricsServer(cfg.Portal.MetricsListen, logger.WithComponent("metrics"))
	}
	return d, nil
}

func (d *daemon) newMonitor(cfg *config.Config) *monitor.Monitor {
	return monitor.New(d.ctl, d.resolver,
		monitor.WithLogger(d.logger.WithComponent("monitor")),
		monitor.WithInterval(cfg.Session.SweepIntervalDuration()),
		monitor.WithSpoofCheck(cfg.Session.SpoofCheckEnabled()),
	)
}

// start brings the gateway up. The firewall comes first and a failure there
// is fatal: serving the portal without enforcement would be meaningless.
func (d *daemon) start(ctx context.Context) error {
	if err := d.gateway.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize firewall: %w", err)
	}

	d.monCtx = ctx
	if err := d.monitor.Start(ctx); err != nil {
		return err
	}

	for _, svc := range d.services() {
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s: %w", svc.Name(), err)
		}
	}

	d.logger.Info("gateway ready",
		"portal", d.portal.Addr(),
		"lan", d.cfg.Gateway.LANInterface,
		"wan", d.cfg.Gateway.WANInterface,
		"timeout", d.ctl.Timeout(),
	)
	return nil
}

// services returns the network listeners in start order.
func (d *daemon) services() []services.Service {
	var svcs []services.Service
	if d.metrics != nil {
		svcs = append(svcs, d.metrics)
	}
	if d.dns != nil {
		svcs = append(svcs, d.dns)
	}
	return append(svcs, d.portal)
}

// reload applies the hot-reloadable parts of next.
func (d *daemon) reload(next *config.Config) {
	old := d.cfg

	d.logger.SetLevel(logging.ParseLevel(next.Log.Level))
	d.ctl.SetTimeout(next.Session.TimeoutDuration())

	if err := d.users.Reload(); err != nil {
		d.logger.Error("failed to reload users", "error", err)
	}

	if next.Session.SweepIntervalDuration() != old.Session.SweepIntervalDuration() ||
		next.Session.SpoofCheckEnabled() != old.Session.SpoofCheckEnabled() {
		d.monitor.Stop()
		d.monitor = d.newMonitor(next)
		if err := d.monitor.Start(d.monCtx); err != nil {
			d.logger.Error("failed to restart monitor", "error", err)
		}
	}

	if topology(next) != topology(old) || next.Gateway.Backend != old.Gateway.Backend {
		d.logger.Warn("gateway changes require a restart to take effect")
	}

	for _, svc := range d.services() {
		restarted, err := svc.Reload(next)
		if err != nil {
			d.logger.Error("service reload failed", "service", svc.Name(), "error", err)
			continue
		}
		if restarted {
			d.logger.Info("service restarted", "service", svc.Name())
		}
	}

	d.cfg = next
	d.logger.Info("configuration reloaded")
}

// shutdown stops intake first, then sweeps, then revokes every session
// before tearing the ruleset down.
func (d *daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var svcs []services.Service
	svcs = append(svcs, d.portal)
	if d.dns != nil {
		svcs = append(svcs, d.dns)
	}
	if d.metrics != nil {
		svcs = append(svcs, d.metrics)
	}
	if err := services.StopAll(ctx, svcs...); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		d.logger.Warn("service shutdown error", "error", err)
	}

	d.monitor.Stop()

	if n := d.ctl.EndAll(); n > 0 {
		d.logger.Info("ended sessions at shutdown", "count", n)
	}

	if err := d.gateway.Cleanup(ctx); err != nil {
		d.logger.Error("firewall cleanup failed", "error", err)
	}
	d.logger.Info("shutdown complete")
}
