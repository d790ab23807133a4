package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/tickworld/engine/internal/component"
	"github.com/tickworld/engine/internal/config"
	"github.com/tickworld/engine/internal/core/ecs"
	"github.com/tickworld/engine/internal/core/event"
	coresys "github.com/tickworld/engine/internal/core/system"
	"github.com/tickworld/engine/internal/module"
	"github.com/tickworld/engine/internal/persist"
	"github.com/tickworld/engine/internal/render"
	"github.com/tickworld/engine/internal/scene"
	"github.com/tickworld/engine/internal/scripting"
	"github.com/tickworld/engine/internal/system"
	"github.com/tickworld/engine/internal/transform"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const defaultConfig = "tickworld.toml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	defPath := defaultConfig
	if p := os.Getenv("TICKWORLD_CONFIG"); p != "" {
		defPath = p
	}
	cfgPath := flag.String("config", defPath, "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, fs.ErrNotExist) && *cfgPath == defaultConfig {
		cfg, err = config.Defaults(), nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger, mirrored into the console scrollback
	sb := system.NewScrollback(cfg.Console.LogSize)
	log, err := newLogger(cfg.Logging, sb, !cfg.Engine.Headless)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	log.Info("starting", zap.String("config", *cfgPath), zap.Bool("headless", cfg.Engine.Headless))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. World, scheduler, module manager
	w := ecs.NewWorld()
	bus := event.NewBus(w, log.Named("event"))
	sched := coresys.NewScheduler(w, bus, log.Named("system"))
	pipe, err := coresys.NewPipeline(sched)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	mgr, err := module.NewManager(sched, pipe, log.Named("module"))
	if err != nil {
		return fmt.Errorf("module manager: %w", err)
	}
	hier := transform.NewHierarchy(w)
	comps := component.Register(w)

	// 4. Device
	var dev render.Device
	var term *render.Terminal
	if cfg.Engine.Headless {
		dev = render.NewHeadless(cfg.Window.Width, cfg.Window.Height)
	} else {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("terminal: %w", err)
		}
		term = render.NewTerminal(screen, cfg.Engine.InputQueueSize, log.Named("terminal"))
		dev = term
	}

	// 5. Modules
	console, err := system.NewConsoleModule(cfg.Console, sb, hier, comps)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	sceneMod := scene.NewModule(cfg.Scene, hier, comps)

	if cfg.Database.Enabled {
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		db, err := persist.NewDB(dbCtx, cfg.Database, log.Named("db"))
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := db.RunMigrations(dbCtx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		sceneMod.SetSaver(persist.NewSceneRepo(db))
	}

	mods := []module.Module{
		system.NewRenderModule(dev, hier, comps, cfg.Window),
		console,
		sceneMod,
		system.NewMotionModule(hier, comps),
		system.NewTransformModule(hier),
		system.NewCameraModule(hier, comps),
		system.NewGUIModule(comps),
	}
	if cfg.Scripting.Enabled {
		eng := scripting.NewEngine(cfg.Scripting.Dir, hier, comps, log.Named("lua"))
		defer eng.Close()
		console.BindScripts(eng)
		mods = append(mods, eng)
	}
	for _, m := range mods {
		if err := mgr.Register(m); err != nil {
			return fmt.Errorf("register module: %w", err)
		}
	}
	log.Info("modules registered", zap.Strings("modules", mgr.Modules()), zap.Duration("tick", cfg.Engine.TickRate))

	// 6. Run the input pump beside the tick loop
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, loopDone := context.WithCancel(gctx)
	if term != nil {
		g.Go(func() error { return term.Pump(loopCtx) })
	}
	g.Go(func() error {
		defer loopDone()
		err := loop(loopCtx, sched, mgr, cfg.Engine, log)
		if term != nil {
			term.Close()
		}
		return err
	})
	return g.Wait()
}

// loop ticks at the configured rate until the shutdown handshake reports
// ShouldQuit. A signal or max_ticks starts the handshake; the loop keeps
// ticking so modules can finish their cleanup.
func loop(ctx context.Context, sched *coresys.Scheduler, mgr *module.Manager, cfg config.EngineConfig, log *zap.Logger) error {
	ticker := time.NewTicker(cfg.TickRate)
	defer ticker.Stop()

	done := ctx.Done()
	for !mgr.ShouldQuit() {
		select {
		case <-ticker.C:
		case <-done:
			log.Info("signal received, shutting down")
			done = nil
			mgr.RequestShutdown()
			continue
		}
		if err := sched.Tick(cfg.TickRate); err != nil {
			return fmt.Errorf("tick: %w", err)
		}
		if cfg.MaxTicks > 0 && sched.Stats().Ticks >= cfg.MaxTicks {
			mgr.RequestShutdown()
		}
	}
	log.Info("engine stopped", zap.Uint64("ticks", sched.Stats().Ticks))
	return nil
}

// newLogger builds the process logger and tees it into sb. In terminal mode
// the screen owns stdout and stderr, so output goes to cfg.File or nowhere
// but the scrollback.
func newLogger(cfg config.LoggingConfig, sb *system.Scrollback, terminal bool) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	if terminal {
		if cfg.File == "" {
			return zap.New(sb.Core(level)), nil
		}
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	return zapCfg.Build(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, sb.Core(level))
	}))
}
