package loader

import (
	"context"
	stderrors "errors"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/stable-abi/compat"
	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
	"github.com/wippyai/stable-abi/registry"
)

// Module is a dynamically loaded binary as seen by the host.
type Module interface {
	Name() string
	// Image resolves every description the module's exports reference.
	Image() layout.Image
	// Exports lists the items the module offers across the boundary.
	Exports() []layout.Key
}

// Host is the image the loading binary was compiled against.
type Host interface {
	layout.Image
	Resolve(name, version string) (*layout.Description, error)
}

var _ Host = (*registry.Registry)(nil)

// Item is an export accepted by the loader.
type Item struct {
	// Key is the module's key for the item.
	Key layout.Key
	// Host is the key of the host description it was checked against.
	Host   layout.Key
	Report *compat.Report
}

// Rejection is an export refused by the loader.
type Rejection struct {
	Key layout.Key
	Err error
}

// Loaded is a module whose exports passed the boundary check.
type Loaded struct {
	Module     Module
	Accepted   []Item
	Rejected   []Rejection
	Skipped    []layout.Key
	Deviations []compat.Deviation
}

// Lookup returns the module's description of an accepted export.
func (l *Loaded) Lookup(key layout.Key) (*layout.Description, bool) {
	for _, it := range l.Accepted {
		if it.Key == key {
			return l.Module.Image().Lookup(key)
		}
	}
	return nil, false
}

// Loader checks modules against the host image before exposing them.
type Loader struct {
	host      Host
	log       *zap.Logger
	overrides map[string]layout.Strictness
	cfg       Config
}

// New creates a loader for host.
func New(host Host, cfg Config) (*Loader, error) {
	if host == nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("host image is nil").
			Build()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyAbort
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	overrides, _ := cfg.Overrides()
	return &Loader{host: host, log: Logger(), overrides: overrides, cfg: cfg}, nil
}

// Config returns the loader's effective configuration.
func (l *Loader) Config() Config {
	return l.cfg
}

type outcome struct {
	host    layout.Key
	report  *compat.Report
	err     error
	skipped bool
}

// Load checks every export of mod against the host image. Exports the host
// does not know are skipped. Under PolicyAbort any incompatibility fails
// the load with all incompatibilities combined; under PolicyRejectItems
// the module is returned with the offending items rejected.
func (l *Loader) Load(ctx context.Context, mod Module) (*Loaded, error) {
	name, img, exports, err := inspect(mod)
	if err != nil {
		return nil, err
	}

	log := l.log.With(zap.String("module", name))
	checker := compat.New(l.host, img, compat.Options{
		Logger:     log,
		Overrides:  l.overrides,
		NoFastPath: l.cfg.NoFastPath,
	})

	// Each goroutine writes only its own slot.
	results := make([]outcome, len(exports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(l.cfg.Jobs, len(exports))))
	for i, key := range exports {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = l.check(checker, key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindCanceled, err, "load of "+name+" interrupted")
	}

	loaded := &Loaded{Module: mod}
	var errs error
	for i, key := range exports {
		res := results[i]
		switch {
		case res.skipped:
			log.Info("export unknown to host, skipped", zap.String("item", key.String()))
			loaded.Skipped = append(loaded.Skipped, key)
		case res.err != nil:
			log.Warn("export rejected", zap.String("item", key.String()), zap.Error(res.err))
			loaded.Rejected = append(loaded.Rejected, Rejection{Key: key, Err: res.err})
			errs = multierr.Append(errs, &errors.ItemError{Item: key.String(), Err: res.err})
		default:
			loaded.Accepted = append(loaded.Accepted, Item{Key: key, Host: res.host, Report: res.report})
			loaded.Deviations = append(loaded.Deviations, res.report.Deviations...)
		}
	}

	if errs != nil && l.cfg.Policy == PolicyAbort {
		return nil, errs
	}
	log.Debug("module loaded",
		zap.Int("accepted", len(loaded.Accepted)),
		zap.Int("rejected", len(loaded.Rejected)),
		zap.Int("skipped", len(loaded.Skipped)))
	return loaded, nil
}

// inspect reads what Load needs from module code, converting a panic into
// an error.
func inspect(mod Module) (name string, img layout.Image, exports []layout.Key, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, exports = nil, nil
			err = errors.Panic(errors.PhaseLoad, []string{name}, r)
		}
	}()

	name = mod.Name()
	if img = mod.Image(); img == nil {
		return name, nil, nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Path(name).
			Detail("module has no image").
			Build()
	}
	return name, img, mod.Exports(), nil
}

func (l *Loader) check(checker *compat.Checker, key layout.Key) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			res = outcome{err: errors.Panic(errors.PhaseLoad, []string{key.String()}, r)}
		}
	}()

	want, err := l.resolve(key)
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) && e.Kind == errors.KindNotFound {
			return outcome{skipped: true}
		}
		return outcome{err: err}
	}

	report, err := checker.CheckKey(want.Key, key)
	if err != nil {
		return outcome{host: want.Key, err: err}
	}
	return outcome{host: want.Key, report: report}
}

// resolve prefers the host's exact key and otherwise the highest host
// version in the same compatibility series as key, so a module built
// against a newer minor version still meets its older host counterpart.
func (l *Loader) resolve(key layout.Key) (*layout.Description, error) {
	if d, ok := l.host.Lookup(key); ok {
		return d, nil
	}
	v, err := semver.NewVersion(key.Version)
	if err != nil {
		return l.host.Resolve(key.Name, key.Version)
	}
	series := semver.New(v.Major(), 0, 0, "", "")
	if v.Major() == 0 {
		series = semver.New(0, v.Minor(), 0, "", "")
	}
	return l.host.Resolve(key.Name, series.String())
}

// Errors splits an error returned by Load into its item errors.
func Errors(err error) []error {
	return multierr.Errors(err)
}

// Static is a Module backed by a registry.
type Static struct {
	reg  *registry.Registry
	name string
}

// NewStatic wraps reg as a module. Its exports are the registry's exports.
func NewStatic(name string, reg *registry.Registry) *Static {
	return &Static{reg: reg, name: name}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Image() layout.Image { return s.reg }

func (s *Static) Exports() []layout.Key { return s.reg.Exports() }
