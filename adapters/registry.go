package adapters

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/brettbedarf/issuefs"
	"github.com/brettbedarf/issuefs/config"
	"github.com/brettbedarf/issuefs/internal/util"
	"github.com/hashicorp/go-multierror"
)

// Options are shared by every tracker client
type Options struct {
	// HTTPClient carries tracker requests. Default is a client without a
	// timeout: refresh calls are bounded only by the tracker, the startup probe
	// by its own context.
	HTTPClient *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{}
}

// Factory builds a tracker client from its credentials
type Factory func(creds config.Credentials, opts Options) (issuefs.Tracker, error)

// Factories maps each backend to the factory building its client
type Factories struct {
	mu        sync.RWMutex
	factories map[issuefs.Backend]Factory
}

func NewFactories() *Factories {
	return &Factories{factories: make(map[issuefs.Backend]Factory)}
}

// Register ties a factory to a backend. The first registration wins.
func (f *Factories) Register(b issuefs.Backend, factory Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.factories[b]; ok {
		return
	}
	f.factories[b] = factory
}

// Factory returns the factory registered for b
func (f *Factories) Factory(b issuefs.Backend) (Factory, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	factory, ok := f.factories[b]
	if !ok {
		return nil, fmt.Errorf("no factory for %q", b)
	}
	return factory, nil
}

// Build creates a client for every backend with valid credentials.
// Backends whose client cannot be built are left out and reported in the
// returned error; the registry is usable either way.
func (f *Factories) Build(creds config.TrackerCredentials, opts Options) (*issuefs.Registry, error) {
	logger := util.GetLogger("Adapters.Build")

	var errs *multierror.Error
	trackers := make(map[issuefs.Backend]issuefs.Tracker)
	for _, b := range issuefs.Backends {
		c := credentialsFor(creds, b)
		if !c.Valid() {
			logger.Debug().Str("backend", string(b)).Msg("No credentials; tracker disabled")
			continue
		}
		factory, err := f.Factory(b)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		t, err := factory(c, opts)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", b, err))
			continue
		}
		logger.Debug().Str("backend", string(b)).Str("url", c.URL).Msg("Tracker client configured")
		trackers[b] = t
	}
	return issuefs.NewRegistry(trackers), errs.ErrorOrNil()
}

func credentialsFor(creds config.TrackerCredentials, b issuefs.Backend) config.Credentials {
	switch b {
	case issuefs.Jira:
		return creds.Jira
	case issuefs.GitHub:
		return creds.GitHub
	case issuefs.Bugzilla:
		return creds.Bugzilla
	}
	return config.Credentials{}
}

// NewRegistry builds the tracker registry from credentials using the built-in adapters
func NewRegistry(creds config.TrackerCredentials, opts Options) (*issuefs.Registry, error) {
	return Builtins().Build(creds, opts)
}
