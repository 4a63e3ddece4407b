package server

import (
	"fmt"
	"sort"

	"github.com/parley-dev/parley/pkg/session"
)

// Apps maps application names to their task entry points. Accepted
// values are the shapes session.Register accepts: func(), func()
// error, session.Task and session.Coroutine. The "index" app is what
// clients get when they name none.
type Apps map[string]any

// application is one registered entry point with its resolved
// execution model.
type application struct {
	name   string
	kind   session.Kind
	runner func()
}

// buildApplications classifies every entry point once, at server
// construction. A bad shape is a programming error and panics here
// rather than on first use.
func buildApplications(apps Apps) map[string]*application {
	built := make(map[string]*application, len(apps))
	for name, target := range apps {
		if name == "" {
			panic("server: application name must not be empty")
		}
		kind, runner := session.Register(target)
		built[name] = &application{name: name, kind: kind, runner: runner}
	}
	return built
}

// newSession creates a fresh session of the application's execution
// model and launches its task.
func (a *application) newSession(cfg *session.Config) session.Session {
	switch a.kind {
	case session.KindCoroutine:
		s := session.NewCoroutineSession(cfg)
		s.Start(a.runner)
		return s
	default:
		s := session.NewGoroutineSession(cfg)
		s.Start(a.runner)
		return s
	}
}

// app resolves a request's application name, defaulting to "index".
func (s *Server) app(name string) (*application, error) {
	if name == "" {
		name = "index"
	}
	a, ok := s.apps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAppNotFound, name)
	}
	return a, nil
}

// AppNames returns the hosted application names, sorted.
func (s *Server) AppNames() []string {
	names := make([]string, 0, len(s.apps))
	for name := range s.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
